package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach to the job's overlay network and check daemon versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fe.Attach(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("attached")
		return nil
	},
}

var detachCmd = &cobra.Command{
	Use:   "detach",
	Short: "Detach from the job's overlay network",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fe.Detach(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("detached")
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the target job",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fe.Pause(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the target job",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fe.Resume(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("resumed")
		return nil
	},
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Broadcast a sample request and wait for the ack sum",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := fe.Sample(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("sample acked")
		return nil
	},
}

var gatherCmd = &cobra.Command{
	Use:   "gather",
	Short: "Sample and gather one merged, reordered call-tree graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := fe.Gather(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var gatherLastCmd = &cobra.Command{
	Use:   "gather-last",
	Short: "Re-gather the most recently sampled graphs without re-sampling",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := fe.GatherLast(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(attachCmd, detachCmd, pauseCmd, resumeCmd, sampleCmd, gatherCmd, gatherLastCmd)
}
