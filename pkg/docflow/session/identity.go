// Package session derives stable session identifiers from a source set.
//
// A session id names the checkpoint slot that extracted content is cached
// under. Two requests with the same sources and user map to the same id, in
// any order.
package session

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/randalmurphal/docflow/pkg/docflow"
)

// Prefix is prepended to every session id.
const Prefix = "session_"

const (
	keyHexLen  = 24
	textHexLen = 16
)

// ID returns the session id for sources and userID. It never fails; an empty
// source list yields a fixed key.
func ID(sources []docflow.SourceItem, userID string) string {
	key := Key(sources, userID)
	sum := sha256.Sum256([]byte(key))
	return Prefix + hex.EncodeToString(sum[:])[:keyHexLen]
}

// Key returns the canonical string hashed by ID.
func Key(sources []docflow.SourceItem, userID string) string {
	descriptors := make([]string, 0, len(sources))
	for _, src := range sources {
		if d, ok := descriptor(src); ok {
			descriptors = append(descriptors, d)
		}
	}
	sort.Strings(descriptors)

	key := strings.Join(descriptors, "|")
	if userID != "" {
		key += "|user:" + userID
	}
	return key
}

// descriptor names src in the key. Unknown source types contribute nothing.
func descriptor(src docflow.SourceItem) (string, bool) {
	switch src.Type {
	case docflow.SourceFile:
		return "file:" + src.FileID, true
	case docflow.SourceURL:
		return "url:" + src.URL, true
	case docflow.SourceText:
		sum := md5.Sum([]byte(src.Content))
		return "text:" + hex.EncodeToString(sum[:])[:textHexLen], true
	default:
		return "", false
	}
}
