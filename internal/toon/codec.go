// Package toon wraps the external TOON encoder/decoder CLI. The codec is
// treated as an opaque collaborator: the only contract the coordinator
// relies on is that decode(encode(payload)) is structurally identical to
// the payload.
package toon

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avast/retry-go"
	gocache "github.com/patrickmn/go-cache"

	"caseforge/internal/logging"
)

// Codec encodes target payloads to TOON text and back. Implementations
// must be safe for concurrent use.
type Codec interface {
	Encode(ctx context.Context, payload map[string]any) (string, error)
	Decode(ctx context.Context, text string) (map[string]any, error)
}

// CLICodec shells out to the TOON command-line tool for every call. The
// input travels through a temp file; stdout carries the result.
type CLICodec struct {
	command []string
	timeout time.Duration
	retries uint
	cache   *gocache.Cache
}

// NewCLI builds a codec around the given command. retries bounds the
// spawn attempts (command-not-found class only); cacheTTL controls the
// encode cache.
func NewCLI(command []string, timeout, cacheTTL time.Duration, retries int) *CLICodec {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 1 {
		retries = 1
	}
	return &CLICodec{
		command: append([]string(nil), command...),
		timeout: timeout,
		retries: uint(retries),
		cache:   gocache.New(cacheTTL, cacheTTL/2),
	}
}

// Encode converts a payload to normalized TOON text. Results are cached
// by the canonical hash of the payload, so generator retries that land on
// an identical payload skip the subprocess.
func (c *CLICodec) Encode(ctx context.Context, payload map[string]any) (string, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("sérialisation du payload: %w", err)
	}
	key := hashKey(canonical)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(string), nil
	}

	stdout, err := c.runWithFile(ctx, canonical, ".json", "--encode")
	if err != nil {
		return "", fmt.Errorf("encodage TOON: %w", err)
	}
	text, err := Normalize(stdout)
	if err != nil {
		return "", fmt.Errorf("encodage TOON: %w", err)
	}
	c.cache.Set(key, text, gocache.DefaultExpiration)
	return text, nil
}

// Decode converts TOON text back to a payload. The root must decode to an
// object. Decode results are never cached.
func (c *CLICodec) Decode(ctx context.Context, text string) (map[string]any, error) {
	stdout, err := c.runWithFile(ctx, []byte(text), ".toon")
	if err != nil {
		return nil, fmt.Errorf("décodage TOON: %w", err)
	}
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return nil, fmt.Errorf("décodage TOON: sortie vide")
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return nil, fmt.Errorf("décodage TOON: sortie illisible: %w", err)
	}
	root, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("décodage TOON: la racine doit être un objet")
	}
	return root, nil
}

// runWithFile writes input to a temp file, invokes the command with extra
// args followed by the file path, and returns stdout. Spawn-class errors
// are retried with a fixed delay; timeouts and tool failures are not.
func (c *CLICodec) runWithFile(ctx context.Context, input []byte, suffix string, extraArgs ...string) (string, error) {
	tmp, err := os.CreateTemp("", "caseforge-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("fichier temporaire: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(input); err != nil {
		tmp.Close()
		return "", fmt.Errorf("écriture du fichier temporaire: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("fermeture du fichier temporaire: %w", err)
	}

	args := append(append([]string(nil), c.command[1:]...), extraArgs...)
	args = append(args, tmp.Name())

	var stdout string
	err = retry.Do(
		func() error {
			var runErr error
			stdout, runErr = c.runOnce(ctx, args)
			return runErr
		},
		retry.Attempts(c.retries),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(isSpawnError),
		retry.LastErrorOnly(true),
	)
	return stdout, err
}

func (c *CLICodec) runOnce(ctx context.Context, args []string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, c.command[0], args...)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	// The kill on deadline only reaches the direct child; a grandchild
	// (npx spawns one) can keep the output pipes open and block Run
	// indefinitely. WaitDelay forces Wait to give up on the pipes.
	cmd.WaitDelay = c.timeout

	start := time.Now()
	err := cmd.Run()
	logging.Get(logging.CategoryCodec).Debug("%s %v terminé en %s (err=%v)",
		c.command[0], args, time.Since(start).Round(time.Millisecond), err)

	if callCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("délai codec dépassé (%s): %w", c.timeout, context.DeadlineExceeded)
	}
	if err != nil {
		if line := firstLine(stderrBuf.String(), stdoutBuf.String()); line != "" {
			return "", fmt.Errorf("codec en échec: %s: %w", line, err)
		}
		return "", fmt.Errorf("codec en échec: %w", err)
	}
	out := stdoutBuf.String()
	if !utf8.ValidString(out) {
		return "", fmt.Errorf("sortie codec non UTF-8")
	}
	return out, nil
}

// isSpawnError reports whether the command could not be started at all,
// as opposed to running and failing.
func isSpawnError(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr)
}

func firstLine(candidates ...string) string {
	for _, text := range candidates {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		return strings.TrimSpace(trimmed)
	}
	return ""
}

// Normalize canonicalizes TOON text: CRLF to LF, trailing spaces stripped
// per line, outer blank lines removed. Text that looks like JSON is
// rejected outright; the locked target must be TOON.
func Normalize(value string) (string, error) {
	text := strings.ReplaceAll(value, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.Trim(text, "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("texte TOON vide")
	}
	head := strings.TrimSpace(text)
	if strings.HasPrefix(head, "{") || strings.HasPrefix(head, "[") {
		return "", fmt.Errorf("le texte ressemble à du JSON, TOON attendu")
	}
	return text, nil
}

// EncodeVerified encodes the payload and proves the round trip: the
// encoded text must decode back to a payload structurally identical to
// the source (compared after a JSON round trip, so number representations
// follow encoding/json in both directions).
func EncodeVerified(ctx context.Context, codec Codec, payload map[string]any) (string, map[string]any, error) {
	text, err := codec.Encode(ctx, payload)
	if err != nil {
		return "", nil, err
	}
	decoded, err := codec.Decode(ctx, text)
	if err != nil {
		return "", nil, fmt.Errorf("relecture du TOON encodé: %w", err)
	}
	same, err := StructurallyEqual(payload, decoded)
	if err != nil {
		return "", nil, err
	}
	if !same {
		return "", nil, fmt.Errorf("aller-retour TOON non fidèle")
	}
	return text, decoded, nil
}

// StructurallyEqual compares two payloads through their canonical JSON.
func StructurallyEqual(left, right map[string]any) (bool, error) {
	l, err := CanonicalJSON(left)
	if err != nil {
		return false, err
	}
	r, err := CanonicalJSON(right)
	if err != nil {
		return false, err
	}
	return bytes.Equal(l, r), nil
}

// CanonicalJSON marshals with sorted keys and without HTML escaping, so
// equal payloads always serialize to equal bytes and French text stays
// readable in the temp files.
func CanonicalJSON(payload map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func hashKey(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
