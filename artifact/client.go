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

package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/provideplatform/bridge/common"
	"github.com/provideplatform/bridge/state"
)

// snapshotEntryName is the archive entry holding the sealed snapshot
// document; matched case-insensitively
const snapshotEntryName = "state_snapshot.json"

// maxArchiveBytes bounds how much of a proof archive is read into memory
const maxArchiveBytes = 64 << 20

var (
	// ErrNoProofsFound indicates the channel has no verified proofs to close against
	ErrNoProofsFound = errors.New("no verified proofs found")

	// ErrArtifactFetch indicates the artifact store returned a non-success response
	ErrArtifactFetch = errors.New("failed to fetch proof artifact")

	// ErrSnapshotMissing indicates the proof archive does not contain a state snapshot
	ErrSnapshotMissing = errors.New("state snapshot not present in proof artifact")

	// ErrSnapshotCorrupt indicates the state snapshot document failed to parse
	ErrSnapshotCorrupt = errors.New("state snapshot corrupt")
)

// ProofRecord is a single verified proof as listed by the artifact store
type ProofRecord struct {
	Key            string `json:"key"`
	SequenceNumber uint64 `json:"sequenceNumber"`
}

// Client fetches sealed channel state snapshots from the remote proof
// artifact store; fetches are idempotent and never retried
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient initializes an artifact store client against the given base
// URL; a nil http client falls back to http.DefaultClient
func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// ListVerifiedProofs returns the verified proofs recorded for the given
// channel, sorted ascending by sequence number
func (c *Client) ListVerifiedProofs(ctx context.Context, channelID string) ([]*ProofRecord, error) {
	uri := fmt.Sprintf("%s/channels/%s/proofs?type=verified", c.baseURL, url.PathEscape(channelID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w; %s", ErrArtifactFetch, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w; proof listing returned status %d: %s", ErrArtifactFetch, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var records []*ProofRecord
	err = json.NewDecoder(resp.Body).Decode(&records)
	if err != nil {
		return nil, fmt.Errorf("%w; failed to parse proof listing; %s", ErrArtifactFetch, err.Error())
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].SequenceNumber < records[j].SequenceNumber
	})

	return records, nil
}

// FetchLatestVerifiedSnapshot resolves the channel's latest verified
// proof (highest sequence number), fetches its archive and extracts the
// sealed state snapshot
func (c *Client) FetchLatestVerifiedSnapshot(ctx context.Context, channelID string) (*state.Snapshot, error) {
	records, err := c.ListVerifiedProofs(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w for channel %s", ErrNoProofsFound, channelID)
	}

	latest := records[len(records)-1]
	common.Log.Debugf("resolved latest verified proof for channel %s: %s (sequence %d)", channelID, latest.Key, latest.SequenceNumber)

	archive, err := c.fetchProofArchive(ctx, channelID, latest.Key)
	if err != nil {
		return nil, err
	}

	raw, err := extractSnapshot(archive)
	if err != nil {
		return nil, err
	}

	snapshot, err := state.ParseSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("%w; %s", ErrSnapshotCorrupt, err.Error())
	}

	return snapshot, nil
}

func (c *Client) fetchProofArchive(ctx context.Context, channelID, proofID string) ([]byte, error) {
	uri := fmt.Sprintf(
		"%s/get-proof-zip?channelId=%s&proofId=%s&status=verifiedProofs&format=binary",
		c.baseURL,
		url.QueryEscape(channelID),
		url.QueryEscape(proofID),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w; %s", ErrArtifactFetch, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w; proof archive fetch returned status %d: %s", ErrArtifactFetch, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	archive, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes))
	if err != nil {
		return nil, fmt.Errorf("%w; failed to read proof archive; %s", ErrArtifactFetch, err.Error())
	}

	return archive, nil
}

func extractSnapshot(archive []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("%w; failed to open proof archive; %s", ErrSnapshotCorrupt, err.Error())
	}

	for _, entry := range zr.File {
		if !strings.EqualFold(entry.Name, snapshotEntryName) {
			continue
		}

		f, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("%w; failed to open archive entry %s; %s", ErrSnapshotCorrupt, entry.Name, err.Error())
		}
		defer f.Close()

		raw, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("%w; failed to read archive entry %s; %s", ErrSnapshotCorrupt, entry.Name, err.Error())
		}

		return raw, nil
	}

	return nil, ErrSnapshotMissing
}
