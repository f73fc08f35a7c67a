package repository

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/okian/loka/internal/domain/model"
)

// Codec encodes the full record list of a data file.
type Codec interface {
	Name() string
	Encode(w io.Writer, records []model.LocationRecord) error
	Decode(r io.Reader) ([]model.LocationRecord, error)
}

// CodecByName returns the codec registered under name ("json" or "msgpack").
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// JSONCodec writes the records as a two-space indented JSON array.
type JSONCodec struct{}

// Name implements Codec.
func (JSONCodec) Name() string { return "json" }

// Encode implements Codec.
func (JSONCodec) Encode(w io.Writer, records []model.LocationRecord) error {
	if records == nil {
		records = []model.LocationRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// Decode implements Codec.
func (JSONCodec) Decode(r io.Reader) ([]model.LocationRecord, error) {
	var records []model.LocationRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
	return records, nil
}

// MsgpackCodec writes msgpack compressed with zstd.
type MsgpackCodec struct{}

// Name implements Codec.
func (MsgpackCodec) Name() string { return "msgpack" }

// Encode implements Codec.
func (MsgpackCodec) Encode(w io.Writer, records []model.LocationRecord) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer zw.Close()

	if err := msgpack.NewEncoder(zw).Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %w", err)
	}
	return nil
}

// Decode implements Codec.
func (MsgpackCodec) Decode(r io.Reader) ([]model.LocationRecord, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var records []model.LocationRecord
	if err := msgpack.NewDecoder(zr).Decode(&records); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
	return records, nil
}
