package core

import (
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/Skryldev/image-api/errors"
)

// ── Operation registry ────────────────────────────────────────────────────────

// OperationRegistry maps operation kinds to their implementations. It is
// populated at startup and only read afterwards.
type OperationRegistry struct {
	mu  sync.RWMutex
	ops map[OperationKind]Operation
}

// NewOperationRegistry returns an empty OperationRegistry.
func NewOperationRegistry() *OperationRegistry {
	return &OperationRegistry{ops: make(map[OperationKind]Operation)}
}

// Register binds op to kind, replacing any previous binding.
func (r *OperationRegistry) Register(kind OperationKind, op Operation) {
	r.mu.Lock()
	r.ops[kind] = op
	r.mu.Unlock()
}

// Resolve returns the operation bound to kind.
func (r *OperationRegistry) Resolve(kind OperationKind) (Operation, error) {
	r.mu.RLock()
	op, ok := r.ops[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.Validation(apperrors.CodeUnknownOperation, "registry.resolve",
			fmt.Sprintf("unknown op '%s'", kind))
	}
	return op, nil
}

// Kinds returns the registered kinds in sorted order.
func (r *OperationRegistry) Kinds() []OperationKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]OperationKind, 0, len(r.ops))
	for k := range r.ops {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ── Codec registry ────────────────────────────────────────────────────────────

// CodecRegistry is a thread-safe implementation of Codecs.
type CodecRegistry struct {
	mu       sync.RWMutex
	decoders map[Format]Decoder
	encoders map[Format]Encoder
}

// NewCodecRegistry returns an empty CodecRegistry.
func NewCodecRegistry() *CodecRegistry {
	return &CodecRegistry{
		decoders: make(map[Format]Decoder),
		encoders: make(map[Format]Encoder),
	}
}

func (r *CodecRegistry) RegisterDecoder(f Format, d Decoder) {
	r.mu.Lock()
	r.decoders[f] = d
	r.mu.Unlock()
}

func (r *CodecRegistry) RegisterEncoder(f Format, e Encoder) {
	r.mu.Lock()
	r.encoders[f] = e
	r.mu.Unlock()
}

func (r *CodecRegistry) DecoderFor(f Format) (Decoder, bool) {
	r.mu.RLock()
	d, ok := r.decoders[f]
	r.mu.RUnlock()
	return d, ok
}

func (r *CodecRegistry) EncoderFor(f Format) (Encoder, bool) {
	r.mu.RLock()
	e, ok := r.encoders[f]
	r.mu.RUnlock()
	return e, ok
}

var _ Codecs = (*CodecRegistry)(nil)
