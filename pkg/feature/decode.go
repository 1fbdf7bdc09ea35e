package feature

import (
	"encoding/json"
	"fmt"
	"io"
)

// EncoderKind is the discriminator stored in GLP-1 encoder artifacts.
const EncoderKind = "glp1_mutation_encoder"

type encoderDoc struct {
	Kind        string   `json:"kind"`
	MaxPosition float64  `json:"max_position"`
	Vocabulary  []string `json:"vocabulary"`
}

// DecodeMutationEncoder reads a fitted GLP-1 encoder artifact.
func DecodeMutationEncoder(r io.Reader) (*MutationEncoder, error) {
	var doc encoderDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding encoder: %w", err)
	}
	if doc.Kind != EncoderKind {
		return nil, fmt.Errorf("unexpected encoder kind: %q", doc.Kind)
	}
	return NewMutationEncoder(doc.Vocabulary, doc.MaxPosition)
}

// EncodeMutationEncoder writes e in the artifact format read by DecodeMutationEncoder.
func EncodeMutationEncoder(w io.Writer, e *MutationEncoder) error {
	doc := encoderDoc{
		Kind:        EncoderKind,
		MaxPosition: e.maxPosition,
		Vocabulary:  e.vocabulary,
	}
	return json.NewEncoder(w).Encode(doc)
}
