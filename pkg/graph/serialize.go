package graph

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/statgo/stat/pkg/bitvector"
)

// Wire format (§6 "Graph wire format"): a graph header (variant tag, node
// count, edge count), repeated node records (id, name_len, name bytes,
// optional source/line attribute), repeated edge records (parent_id,
// child_id, edge label).
const (
	variantTagBitvector byte = 0
	variantTagCountRep  byte = 1

	nodeFlagHasSourceLine byte = 1
)

func variantTag(v bitvector.Variant) (byte, error) {
	switch v {
	case bitvector.VariantBitvector:
		return variantTagBitvector, nil
	case bitvector.VariantCountAndRepresentative:
		return variantTagCountRep, nil
	default:
		return 0, fmt.Errorf("graph: unknown variant %d", v)
	}
}

func variantFromTag(tag byte) (bitvector.Variant, error) {
	switch tag {
	case variantTagBitvector:
		return bitvector.VariantBitvector, nil
	case variantTagCountRep:
		return bitvector.VariantCountAndRepresentative, nil
	default:
		return 0, fmt.Errorf("graph: unknown variant tag %d", tag)
	}
}

// EdgeDecodeFunc reads exactly one edge label's bytes from r. The reduction
// filter (§4.4) injects the width-expanding variant (ExpandingBitvectorDecoder);
// every other caller uses BasicBitvectorDecoder or CountRepDecoder.
type EdgeDecodeFunc func(r *bytes.Reader) (bitvector.Label, error)

// BasicBitvectorDecoder reads a self-describing (width, words) bitvector
// label without any width expansion.
func BasicBitvectorDecoder() EdgeDecodeFunc {
	return func(r *bytes.Reader) (bitvector.Label, error) {
		var widthU64 uint64
		if err := binary.Read(r, binary.LittleEndian, &widthU64); err != nil {
			return bitvector.Label{}, fmt.Errorf("graph: reading bitvector width: %w", err)
		}
		width := int(widthU64)
		v := bitvector.NewWords(width)
		words := v.Words()
		for i := 0; i < width; i++ {
			if err := binary.Read(r, binary.LittleEndian, &words[i]); err != nil {
				return bitvector.Label{}, fmt.Errorf("graph: reading bitvector word %d: %w", i, err)
			}
		}
		return bitvector.NewBitvectorLabel(v), nil
	}
}

// ExpandingBitvectorDecoder reads a child's (width, words) payload and
// places it into slice [offset, offset+childWidth) of a fresh totalWidth
// vector, per §4.1's width-expanding deserialization.
func ExpandingBitvectorDecoder(totalWidth, offset, childWidth int) EdgeDecodeFunc {
	return func(r *bytes.Reader) (bitvector.Label, error) {
		var widthU64 uint64
		if err := binary.Read(r, binary.LittleEndian, &widthU64); err != nil {
			return bitvector.Label{}, fmt.Errorf("graph: reading child bitvector width: %w", err)
		}
		if int(widthU64) != childWidth {
			return bitvector.Label{}, fmt.Errorf("graph: child width mismatch: payload says %d, caller says %d", widthU64, childWidth)
		}
		out := bitvector.NewWords(totalWidth)
		dst := out.Words()
		if offset < 0 || offset+childWidth > totalWidth {
			return bitvector.Label{}, fmt.Errorf("graph: child slice [%d,%d) does not fit in total width %d", offset, offset+childWidth, totalWidth)
		}
		for i := 0; i < childWidth; i++ {
			if err := binary.Read(r, binary.LittleEndian, &dst[offset+i]); err != nil {
				return bitvector.Label{}, fmt.Errorf("graph: reading child bitvector word %d: %w", i, err)
			}
		}
		return bitvector.NewBitvectorLabel(out), nil
	}
}

// CountRepDecoder reads the 24-byte fixed CountAndRepresentative record.
func CountRepDecoder() EdgeDecodeFunc {
	return func(r *bytes.Reader) (bitvector.Label, error) {
		buf := make([]byte, 24)
		if _, err := readFull(r, buf); err != nil {
			return bitvector.Label{}, fmt.Errorf("graph: reading count-rep record: %w", err)
		}
		c, err := bitvector.DecodeCountRep(buf)
		if err != nil {
			return bitvector.Label{}, err
		}
		return bitvector.NewCountRepLabel(c), nil
	}
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Serialize encodes the graph to the wire format of §6.
func Serialize(g *Graph) ([]byte, error) {
	var buf bytes.Buffer

	tag, err := variantTag(g.Variant)
	if err != nil {
		return nil, err
	}
	buf.WriteByte(tag)
	if err := binary.Write(&buf, binary.LittleEndian, uint32(g.NodeCount())); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(g.EdgeCount())); err != nil {
		return nil, err
	}

	for _, n := range g.Nodes() {
		if err := binary.Write(&buf, binary.LittleEndian, n.ID); err != nil {
			return nil, err
		}
		nameBytes := []byte(n.Name)
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(nameBytes))); err != nil {
			return nil, err
		}
		buf.Write(nameBytes)

		if n.Source != "" || n.Line != 0 {
			buf.WriteByte(nodeFlagHasSourceLine)
			srcBytes := []byte(n.Source)
			if err := binary.Write(&buf, binary.LittleEndian, uint32(len(srcBytes))); err != nil {
				return nil, err
			}
			buf.Write(srcBytes)
			if err := binary.Write(&buf, binary.LittleEndian, int64(n.Line)); err != nil {
				return nil, err
			}
		} else {
			buf.WriteByte(0)
		}
	}

	for _, e := range g.Edges() {
		if err := binary.Write(&buf, binary.LittleEndian, e.Parent); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, e.Child); err != nil {
			return nil, err
		}
		switch g.Variant {
		case bitvector.VariantBitvector:
			buf.Write(bitvector.Encode(e.Label.Vec))
		case bitvector.VariantCountAndRepresentative:
			buf.Write(bitvector.EncodeCountRep(e.Label.CountRep))
		default:
			return nil, fmt.Errorf("graph: unknown variant %d", g.Variant)
		}
	}

	return buf.Bytes(), nil
}

// Deserialize decodes a graph from the wire format of §6, using dec to read
// each edge's label. Passing ExpandingBitvectorDecoder lets the reduction
// filter (§4.4) slot this graph's bits into a disjoint region of a larger
// output vector without materializing an intermediate full-width buffer.
func Deserialize(data []byte, dec EdgeDecodeFunc) (*Graph, error) {
	r := bytes.NewReader(data)

	tagByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("graph: reading variant tag: %w", err)
	}
	variant, err := variantFromTag(tagByte)
	if err != nil {
		return nil, err
	}

	var nodeCount, edgeCount uint32
	if err := binary.Read(r, binary.LittleEndian, &nodeCount); err != nil {
		return nil, fmt.Errorf("graph: reading node count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &edgeCount); err != nil {
		return nil, fmt.Errorf("graph: reading edge count: %w", err)
	}

	g := &Graph{
		Variant: variant,
		nodes:   make(map[uint64]*Node, nodeCount),
		edges:   make(map[EdgeKey]*Edge, edgeCount),
	}

	for i := uint32(0); i < nodeCount; i++ {
		var id uint64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, fmt.Errorf("graph: reading node %d id: %w", i, err)
		}
		var nameLen uint32
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("graph: reading node %d name length: %w", i, err)
		}
		nameBuf := make([]byte, nameLen)
		if _, err := readFull(r, nameBuf); err != nil {
			return nil, fmt.Errorf("graph: reading node %d name: %w", i, err)
		}
		n := &Node{ID: id, Name: string(nameBuf)}

		flags, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("graph: reading node %d flags: %w", i, err)
		}
		if flags&nodeFlagHasSourceLine != 0 {
			var srcLen uint32
			if err := binary.Read(r, binary.LittleEndian, &srcLen); err != nil {
				return nil, fmt.Errorf("graph: reading node %d source length: %w", i, err)
			}
			srcBuf := make([]byte, srcLen)
			if _, err := readFull(r, srcBuf); err != nil {
				return nil, fmt.Errorf("graph: reading node %d source: %w", i, err)
			}
			n.Source = string(srcBuf)
			var line int64
			if err := binary.Read(r, binary.LittleEndian, &line); err != nil {
				return nil, fmt.Errorf("graph: reading node %d line: %w", i, err)
			}
			n.Line = int(line)
		}
		g.nodes[id] = n
	}

	for i := uint32(0); i < edgeCount; i++ {
		var parent, child uint64
		if err := binary.Read(r, binary.LittleEndian, &parent); err != nil {
			return nil, fmt.Errorf("graph: reading edge %d parent: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &child); err != nil {
			return nil, fmt.Errorf("graph: reading edge %d child: %w", i, err)
		}
		label, err := dec(r)
		if err != nil {
			return nil, fmt.Errorf("graph: reading edge %d label: %w", i, err)
		}
		label.Variant = variant
		g.edges[EdgeKey{Parent: parent, Child: child}] = &Edge{Parent: parent, Child: child, Label: label}
	}

	return g, nil
}
