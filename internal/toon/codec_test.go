package toon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("strips CRLF and trailing spaces", func(t *testing.T) {
		text, err := Normalize("famille:  \r\n  defunt:\t\r\n")
		require.NoError(t, err)
		assert.Equal(t, "famille:\n  defunt:", text)
	})

	t.Run("strips outer blank lines", func(t *testing.T) {
		text, err := Normalize("\n\nfamille:\n\n")
		require.NoError(t, err)
		assert.Equal(t, "famille:", text)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := Normalize("   \n  ")
		assert.Error(t, err)
	})

	t.Run("rejects JSON-looking text", func(t *testing.T) {
		_, err := Normalize(`{"famille": {}}`)
		assert.Error(t, err)
		_, err = Normalize(`[1, 2]`)
		assert.Error(t, err)
	})
}

func TestCanonicalJSONIsStable(t *testing.T) {
	left, err := CanonicalJSON(map[string]any{"b": 1, "a": "é"})
	require.NoError(t, err)
	right, err := CanonicalJSON(map[string]any{"a": "é", "b": 1})
	require.NoError(t, err)
	assert.Equal(t, left, right)
	assert.Contains(t, string(left), "é")
}

func TestStructurallyEqualAcrossNumberKinds(t *testing.T) {
	// Generated payloads carry ints; decoded JSON carries float64.
	same, err := StructurallyEqual(
		map[string]any{"montant": 1500},
		map[string]any{"montant": float64(1500)},
	)
	require.NoError(t, err)
	assert.True(t, same)

	same, err = StructurallyEqual(
		map[string]any{"montant": 1500},
		map[string]any{"montant": float64(1501)},
	)
	require.NoError(t, err)
	assert.False(t, same)
}

// writeScript drops an executable shell script into dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestDecodeRunsSubprocess(t *testing.T) {
	// `cat` echoes the temp file back, so feeding it JSON text exercises
	// the full subprocess path without the real TOON tool.
	codec := NewCLI([]string{"cat"}, 2*time.Second, time.Minute, 1)
	decoded, err := codec.Decode(context.Background(), `{"famille": {"defunt": {"nom": "Durand"}}}`)
	require.NoError(t, err)
	famille, ok := decoded["famille"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, famille, "defunt")
}

func TestDecodeRejectsNonObjectRoot(t *testing.T) {
	codec := NewCLI([]string{"cat"}, 2*time.Second, time.Minute, 1)
	_, err := codec.Decode(context.Background(), `[1, 2, 3]`)
	assert.ErrorContains(t, err, "racine")
}

func TestEncodeCachesByPayloadHash(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "calls")
	script := writeScript(t, dir, "fake-encode",
		fmt.Sprintf("echo x >> %s\necho 'famille:'\necho '  defunt:'", marker))

	codec := NewCLI([]string{script}, 2*time.Second, time.Minute, 1)
	payload := map[string]any{"famille": map[string]any{"defunt": map[string]any{"nom": "Morel"}}}

	first, err := codec.Encode(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "famille:\n  defunt:", first)

	second, err := codec.Encode(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	calls, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(calls), "le second encode doit venir du cache")
}

func TestNonZeroExitReportsFirstStderrLine(t *testing.T) {
	script := writeScript(t, t.TempDir(), "fail",
		"echo 'ligne 12: structure invalide' >&2\necho 'détail' >&2\nexit 3")
	codec := NewCLI([]string{script}, 2*time.Second, time.Minute, 1)
	_, err := codec.Decode(context.Background(), "famille:")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ligne 12: structure invalide")
	assert.NotContains(t, err.Error(), "détail")
}

func TestTimeout(t *testing.T) {
	script := writeScript(t, t.TempDir(), "slow", "sleep 5")
	codec := NewCLI([]string{script}, 150*time.Millisecond, time.Minute, 1)
	start := time.Now()
	_, err := codec.Decode(context.Background(), "famille:")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestSpawnFailureIsNotRetriedForever(t *testing.T) {
	codec := NewCLI([]string{filepath.Join(t.TempDir(), "absent-tool")}, time.Second, time.Minute, 2)
	start := time.Now()
	_, err := codec.Decode(context.Background(), "famille:")
	require.Error(t, err)
	// Two attempts with one fixed 200ms delay between them.
	assert.Less(t, time.Since(start), 2*time.Second)
}

// stubCodec is an in-process codec for round-trip tests.
type stubCodec struct {
	encoded map[string]map[string]any
	mangle  bool
}

func (s *stubCodec) Encode(_ context.Context, payload map[string]any) (string, error) {
	raw, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	key := "toon:" + string(raw)
	if s.encoded == nil {
		s.encoded = map[string]map[string]any{}
	}
	s.encoded[key] = payload
	return key, nil
}

func (s *stubCodec) Decode(_ context.Context, text string) (map[string]any, error) {
	payload, ok := s.encoded[text]
	if !ok {
		return nil, fmt.Errorf("texte inconnu")
	}
	if s.mangle {
		return map[string]any{"autre": true}, nil
	}
	return payload, nil
}

func TestEncodeVerified(t *testing.T) {
	payload := map[string]any{"famille": map[string]any{"defunt": map[string]any{"nom": "Petit", "age_au_deces": 74}}}

	t.Run("faithful round trip passes", func(t *testing.T) {
		text, decoded, err := EncodeVerified(context.Background(), &stubCodec{}, payload)
		require.NoError(t, err)
		assert.NotEmpty(t, text)
		same, err := StructurallyEqual(payload, decoded)
		require.NoError(t, err)
		assert.True(t, same)
	})

	t.Run("mismatch is an error", func(t *testing.T) {
		_, _, err := EncodeVerified(context.Background(), &stubCodec{mangle: true}, payload)
		assert.ErrorContains(t, err, "aller-retour")
	})
}
