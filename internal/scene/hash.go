package scene

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainScene       = "scenecast/scene/v1"
	DomainComposition = "scenecast/composition/v1"
)

// SourceHash computes the stable content hash of one scene's resolved source
// text. Format: SHA256(domain + 0x00 + NFC(text)), hex encoded.
//
// The null separator prevents domain/data boundary ambiguity. NFC
// normalization keeps visually identical source from hashing differently
// across editors that emit different Unicode compositions.
//
// This hash is the cache key component for compiled units and the persisted
// pre-lowered cache; it must stay stable across releases.
func SourceHash(text string) string {
	h := sha256.New()
	h.Write([]byte(DomainScene))
	h.Write([]byte{0x00})
	h.Write([]byte(norm.NFC.String(text)))
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash is a djb2-style rolling hash (xor variant) over NFC-normalized
// text. It is the hot-path hash: recomputed on every edit for fingerprinting,
// so it trades collision resistance for speed. Never persist it.
func ContentHash(text string) uint32 {
	var h uint32 = 5381
	for _, b := range []byte(norm.NFC.String(text)) {
		h = (h * 33) ^ uint32(b)
	}
	return h
}

// AudioSignature summarizes every audio field that affects the emitted
// module. An absent overlay yields a distinct constant so adding or removing
// audio always changes the composition fingerprint.
func AudioSignature(a *AudioOverlay) string {
	if a == nil {
		return "no-audio"
	}
	return fmt.Sprintf("%s|%.4f|%.4f|%.4f|%.4f|%.4f|%.4f",
		a.URL, a.Volume, a.StartTimeSec, a.EndTimeSec, a.FadeInSec, a.FadeOutSec, a.Rate())
}

// Fingerprint derives the composition fingerprint: a single deterministic,
// order-sensitive string covering every scene's position, identity, order,
// duration and content, plus the audio signature and the scene count.
//
// Equal fingerprints guarantee a byte-identical assembled module, which is
// what makes the fingerprint safe as the scheduler's memoization key.
// Reordering two scenes changes the fingerprint even when total duration and
// content are unchanged - the index and order fields are part of each record.
func Fingerprint(scenes []Descriptor, audio *AudioOverlay) string {
	var sb strings.Builder
	sb.WriteString(DomainComposition)
	for i, d := range scenes {
		fmt.Fprintf(&sb, ";%d:%s:%d:%d:%08x",
			i, d.ID, d.Order, d.DurationFrames, ContentHash(d.ResolvedSource()))
	}
	fmt.Fprintf(&sb, ";audio=%s;n=%d", AudioSignature(audio), len(scenes))
	return sb.String()
}
