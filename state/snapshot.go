/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package state

import (
	"encoding/json"
	"fmt"

	"github.com/provideplatform/bridge/common"
)

// Leaf is a single (key, value) storage entry within a sealed snapshot
type Leaf struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Snapshot is the proof-time view of a channel's L2 storage, as sealed
// inside the most recently verified proof. RegisteredKeys carries the
// canonical circuit ordering; a key's position in it is its proof index.
// Snapshots are immutable once parsed.
type Snapshot struct {
	RegisteredKeys     []string `json:"registeredKeys"`
	StorageEntries     []Leaf   `json:"storageEntries"`
	PreAllocatedLeaves []Leaf   `json:"preAllocatedLeaves"`
}

// ParseSnapshot parses and structurally validates a snapshot document,
// failing fast on malformed input rather than propagating zero values
// into the closing flow
func ParseSnapshot(raw []byte) (*Snapshot, error) {
	snapshot := &Snapshot{}
	err := json.Unmarshal(raw, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to parse state snapshot; %s", err.Error())
	}

	if snapshot.RegisteredKeys == nil {
		return nil, fmt.Errorf("failed to parse state snapshot; registeredKeys not present")
	}

	for i, key := range snapshot.RegisteredKeys {
		if key == "" {
			return nil, fmt.Errorf("failed to parse state snapshot; empty registered key at index %d", i)
		}
	}

	for i, entry := range snapshot.StorageEntries {
		if entry.Key == "" {
			return nil, fmt.Errorf("failed to parse state snapshot; storage entry %d has no key", i)
		}
	}

	for i, leaf := range snapshot.PreAllocatedLeaves {
		if leaf.Key == "" {
			return nil, fmt.Errorf("failed to parse state snapshot; pre-allocated leaf %d has no key", i)
		}
	}

	return snapshot, nil
}

// ProofIndexes returns a lookup from normalized storage key to its
// position in RegisteredKeys, i.e., the index the zero-knowledge
// circuit assigned to that key at proof time
func (s *Snapshot) ProofIndexes() map[string]int {
	indexes := make(map[string]int, len(s.RegisteredKeys))
	for i, key := range s.RegisteredKeys {
		indexes[common.NormalizeKey(key)] = i
	}
	return indexes
}

// Values returns a lookup from normalized storage key to its raw value
// string; storage entries are merged first and pre-allocated leaves fill
// only keys absent from the storage entries, so active balances always
// take precedence over reserved slots
func (s *Snapshot) Values() map[string]string {
	values := make(map[string]string, len(s.StorageEntries)+len(s.PreAllocatedLeaves))

	for _, entry := range s.StorageEntries {
		values[common.NormalizeKey(entry.Key)] = entry.Value
	}

	for _, leaf := range s.PreAllocatedLeaves {
		k := common.NormalizeKey(leaf.Key)
		if _, ok := values[k]; !ok {
			values[k] = leaf.Value
		}
	}

	return values
}
