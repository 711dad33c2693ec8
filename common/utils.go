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

package common

import (
	"fmt"
	"math/big"
	"strings"
)

// ZeroKey is the canonical 32-byte zero storage key
const ZeroKey = "0x0000000000000000000000000000000000000000000000000000000000000000"

// supported merkle tree capacities; fixes the public signal length as treeSize*2+1
var supportedTreeSizes = map[uint64]bool{
	16:  true,
	32:  true,
	64:  true,
	128: true,
}

// StringOrNil returns the given string or nil when empty
func StringOrNil(str string) *string {
	if str == "" {
		return nil
	}
	return &str
}

// PanicIfEmpty panics if the given string is empty
func PanicIfEmpty(val string, msg string) {
	if val == "" {
		panic(msg)
	}
}

// NormalizeKey normalizes a storage key or address for comparison and
// indexing: trimmed, lower-cased and 0x-prefixed. Every component that
// compares or indexes by key must use this form.
func NormalizeKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if !strings.HasPrefix(k, "0x") {
		k = "0x" + k
	}
	return k
}

// ValidTreeSize returns true if the given merkle tree capacity is supported
func ValidTreeSize(treeSize uint64) bool {
	return supportedTreeSizes[treeSize]
}

// ParseAmount parses an unsigned amount given as either a decimal or
// 0x-prefixed hex string into an arbitrary-precision integer; empty
// strings and a bare "0x" mean zero
func ParseAmount(val string) (*big.Int, error) {
	v := strings.TrimSpace(val)
	if v == "" || v == "0x" || v == "0X" {
		return new(big.Int), nil
	}

	base := 10
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		v = v[2:]
		base = 16
	}

	i, ok := new(big.Int).SetString(v, base)
	if !ok {
		return nil, fmt.Errorf("failed to parse amount: %s", val)
	}
	if i.Sign() < 0 {
		return nil, fmt.Errorf("failed to parse amount; negative value: %s", val)
	}

	return i, nil
}

// DecimalAmount renders the given decimal or hex amount string in its
// canonical decimal form, as consumed by the proof engine
func DecimalAmount(val string) (string, error) {
	i, err := ParseAmount(val)
	if err != nil {
		return "", err
	}
	return i.String(), nil
}
