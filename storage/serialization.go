// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/lumina/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) == 0 {
		return 0, ErrTruncatedData
	}
	id, _, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return id, nil
}

// MarshalVectorRecord serializes a VectorRecord to bytes.
func MarshalVectorRecord(record *core.VectorRecord) []byte {
	buf := make([]byte, core.VectorRecordMUS.Size(*record))
	core.VectorRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalVectorRecord deserializes a VectorRecord from bytes.
// Empty vectors decode as nil.
func UnmarshalVectorRecord(data []byte) (*core.VectorRecord, error) {
	record, err := unmarshal(data, core.VectorRecordMUS.Unmarshal)
	if err != nil {
		return nil, err
	}
	if len(record.Dense) == 0 {
		record.Dense = nil
	}
	if record.Sparse.Len() == 0 {
		record.Sparse = core.SparseVector{}
	}
	return &record, nil
}

// MarshalSession serializes a Session to bytes.
func MarshalSession(session *core.Session) []byte {
	buf := make([]byte, core.SessionMUS.Size(*session))
	core.SessionMUS.Marshal(*session, buf)
	return buf
}

// UnmarshalSession deserializes a Session from bytes.
func UnmarshalSession(data []byte) (*core.Session, error) {
	session, err := unmarshal(data, core.SessionMUS.Unmarshal)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// MarshalTurn serializes a Turn to bytes.
func MarshalTurn(turn *core.Turn) []byte {
	buf := make([]byte, core.TurnMUS.Size(*turn))
	core.TurnMUS.Marshal(*turn, buf)
	return buf
}

// UnmarshalTurn deserializes a Turn from bytes.
func UnmarshalTurn(data []byte) (*core.Turn, error) {
	turn, err := unmarshal(data, core.TurnMUS.Unmarshal)
	if err != nil {
		return nil, err
	}
	return &turn, nil
}

// MarshalLead serializes a Lead to bytes.
func MarshalLead(lead *core.Lead) []byte {
	buf := make([]byte, core.LeadMUS.Size(*lead))
	core.LeadMUS.Marshal(*lead, buf)
	return buf
}

// UnmarshalLead deserializes a Lead from bytes.
func UnmarshalLead(data []byte) (*core.Lead, error) {
	lead, err := unmarshal(data, core.LeadMUS.Unmarshal)
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// MarshalIndexMeta serializes IndexMeta to bytes.
// Timestamps are stored as Unix microseconds.
func MarshalIndexMeta(meta *IndexMeta) []byte {
	created, updated := meta.CreatedAt.UnixMicro(), meta.UpdatedAt.UnixMicro()
	size := varint.Int.Size(meta.Dimension) +
		ord.String.Size(meta.VocabularyID) +
		varint.Int64.Size(created) +
		varint.Int64.Size(updated)
	buf := make([]byte, size)
	n := varint.Int.Marshal(meta.Dimension, buf)
	n += ord.String.Marshal(meta.VocabularyID, buf[n:])
	n += varint.Int64.Marshal(created, buf[n:])
	varint.Int64.Marshal(updated, buf[n:])
	return buf
}

// UnmarshalIndexMeta deserializes IndexMeta from bytes.
func UnmarshalIndexMeta(data []byte) (*IndexMeta, error) {
	if len(data) == 0 {
		return nil, ErrTruncatedData
	}
	var meta IndexMeta
	dim, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: dimension: %w", ErrSerializationFailed, err)
	}
	meta.Dimension = dim
	vocab, n1, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: vocabulary: %w", ErrSerializationFailed, err)
	}
	meta.VocabularyID = vocab
	n += n1
	created, n1, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: created: %w", ErrSerializationFailed, err)
	}
	n += n1
	updated, _, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: updated: %w", ErrSerializationFailed, err)
	}
	meta.CreatedAt = time.UnixMicro(created).UTC()
	meta.UpdatedAt = time.UnixMicro(updated).UTC()
	return &meta, nil
}

func unmarshal[T any](data []byte, fn func([]byte) (T, int, error)) (T, error) {
	var zero T
	if len(data) == 0 {
		return zero, ErrTruncatedData
	}
	v, _, err := fn(data)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return v, nil
}
