package dataset

import (
	"errors"
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// DefaultMaxLength caps encoded sequences.
const DefaultMaxLength = 512

// Encoder turns text into token ids.
type Encoder interface {
	Encode(text string) ([]int, error)
}

// Sequence is one encoded conversation.
type Sequence struct {
	InputIDs      []int `json:"input_ids"`
	AttentionMask []int `json:"attention_mask"`
}

// TokenizerEncoder encodes with a HuggingFace tokenizer.json.
type TokenizerEncoder struct {
	tk *tokenizer.Tokenizer
}

// NewTokenizerEncoder loads a tokenizer.json file.
func NewTokenizerEncoder(path string) (*TokenizerEncoder, error) {
	if path == "" {
		return nil, errors.New("tokenizer path is required")
	}
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer %s: %w", path, err)
	}
	return &TokenizerEncoder{tk: tk}, nil
}

// Encode implements Encoder.
func (e *TokenizerEncoder) Encode(text string) ([]int, error) {
	en, err := e.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("encoding: %w", err)
	}
	return en.Ids, nil
}

// Tokenize encodes each pair as a persona conversation, truncated to maxLen
// tokens (DefaultMaxLength when maxLen <= 0).
func Tokenize(qas []QA, persona string, enc Encoder, maxLen int) ([]Sequence, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	out := make([]Sequence, 0, len(qas))
	for i, qa := range qas {
		ids, err := enc.Encode(Conversation(qa, persona))
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
		if len(ids) > maxLen {
			ids = ids[:maxLen]
		}
		mask := make([]int, len(ids))
		for j := range mask {
			mask[j] = 1
		}
		out = append(out, Sequence{InputIDs: ids, AttentionMask: mask})
	}
	return out, nil
}

// PadBatch right-pads every sequence to the longest one, masking the padding.
func PadBatch(seqs []Sequence, padID int) []Sequence {
	longest := 0
	for _, s := range seqs {
		longest = max(longest, len(s.InputIDs))
	}
	out := make([]Sequence, len(seqs))
	for i, s := range seqs {
		ids := append(make([]int, 0, longest), s.InputIDs...)
		mask := append(make([]int, 0, longest), s.AttentionMask...)
		for len(ids) < longest {
			ids = append(ids, padID)
			mask = append(mask, 0)
		}
		out[i] = Sequence{InputIDs: ids, AttentionMask: mask}
	}
	return out
}
