package wig

import (
	"fmt"

	"github.com/genomicsio/featix/internal/binary"
)

// ReadSteps decodes the step records contained in one block's byte span of
// the data file.  The contig is not stored in the records; it is implied by
// the index file the block came from.
func ReadSteps(data []byte) ([]*Step, error) {
	dec := binary.NewReader(data)
	var steps []*Step
	for dec.Len() > 0 {
		step, err := readStep(dec)
		if err != nil {
			return nil, fmt.Errorf("decoding step %d: %v", len(steps), err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func readStep(dec *binary.Reader) (*Step, error) {
	kind, err := dec.Uint8()
	if err != nil {
		return nil, err
	}
	step := &Step{Kind: Kind(kind)}
	if step.Kind != VariableStep && step.Kind != FixedStep {
		return nil, fmt.Errorf("unknown step kind %d", kind)
	}
	if step.Span, err = dec.Uint32(); err != nil {
		return nil, err
	}
	if step.Track, err = dec.Uint32(); err != nil {
		return nil, err
	}
	count, err := dec.Uint32()
	if err != nil {
		return nil, err
	}

	switch step.Kind {
	case VariableStep:
		step.Positions = make([]uint64, count)
		step.Values = make([]float32, count)
		for i := uint32(0); i < count; i++ {
			if step.Positions[i], err = dec.Uint64(); err != nil {
				return nil, err
			}
			if step.Values[i], err = dec.Float32(); err != nil {
				return nil, err
			}
		}
	case FixedStep:
		if step.Start, err = dec.Uint64(); err != nil {
			return nil, err
		}
		if step.Step, err = dec.Uint32(); err != nil {
			return nil, err
		}
		step.Values = make([]float32, count)
		for i := uint32(0); i < count; i++ {
			if step.Values[i], err = dec.Float32(); err != nil {
				return nil, err
			}
		}
	}
	return step, nil
}
