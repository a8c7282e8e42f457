package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"caseforge/internal/axes"
	"caseforge/internal/config"
	"caseforge/internal/storage"
	"caseforge/internal/store"
	"caseforge/internal/toon"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubCodec replaces the external TOON CLI with a reversible inline
// encoding that still satisfies the round-trip verification.
type stubCodec struct{}

func (stubCodec) Encode(_ context.Context, payload map[string]any) (string, error) {
	raw, err := toon.CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	return "toon|" + string(raw), nil
}

func (stubCodec) Decode(_ context.Context, text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "toon|") {
		return nil, fmt.Errorf("texte TOON inattendu")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimPrefix(text, "toon|")), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	cfg.SchemaFile = filepath.Join("..", "..", "testdata", "schema_cible.json")
	cfg.TargetTotalCases = 10
	cfg.Seed = 7
	cfg.MaxAttempts = 60
	cfg.ArchiveEnabled = false
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	require.NoError(t, cfg.Validate())
	app, err := New(cfg, stubCodec{})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func issueOne(t *testing.T, app *App, agentID, topic string) InstructionResponse {
	t.Helper()
	response, err := app.NextInstruction(context.Background(), agentID, topic)
	require.NoError(t, err)
	instruction, ok := response.(InstructionResponse)
	require.True(t, ok, "réponse d'émission attendue, reçu %T", response)
	return instruction
}

// caseTextFor writes a plain French statement containing every locked
// name, passing name coverage and the leakage filters.
func caseTextFor(instruction InstructionResponse) string {
	return "Mon père est décédé il y a quelques mois et la situation familiale est bloquée. " +
		"Sont concernés " + strings.Join(instruction.MustInclude, ", ") + ". " +
		"Personne ne veut vendre la maison et je ne sais pas quoi faire."
}

func TestNextInstructionFirstIssuance(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	instruction := issueOne(t, app, "agent-a", "")
	assert.Equal(t, "INS-0001", instruction.InstructionID)
	assert.Equal(t, "agent-a", instruction.AgentID)
	require.NotEmpty(t, instruction.TargetTOON)
	assert.Equal(t, instruction.ServerTargetTOON, instruction.TargetTOON)
	assert.Contains(t, instruction.Prompt, "TOON:")
	assert.Contains(t, instruction.Prompt, "Règle A:")
	assert.NotEmpty(t, instruction.MustInclude)
	assert.NotEmpty(t, instruction.MustAvoid)
	assert.NotEmpty(t, instruction.Signature)
	assert.Len(t, instruction.DimensionGuide, len(axes.DrawOrder))

	decoded, err := stubCodec{}.Decode(context.Background(), instruction.TargetTOON)
	require.NoError(t, err)
	famille, ok := decoded["famille"].(map[string]any)
	require.True(t, ok)
	defunt, ok := famille["defunt"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, defunt["nom"])

	health := app.Health()
	assert.Equal(t, 1, health.Issued)
	assert.Equal(t, 0, health.Submitted)
	assert.Equal(t, 10, health.GenerationTarget)

	// Le journal et le fichier de consigne existent.
	_, err = os.Stat(filepath.Join(app.cfg.StateDir, storage.IssuedFilename))
	assert.NoError(t, err)
	_, err = os.Stat(app.st.InstructionFile("INS-0001"))
	assert.NoError(t, err)
}

func TestInstructionIDsMonotonic(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	for i := 1; i <= 3; i++ {
		instruction := issueOne(t, app, "", "")
		assert.Equal(t, fmt.Sprintf("INS-%04d", i), instruction.InstructionID)
	}
}

func TestSubmitAcceptedThenDuplicate(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	instruction := issueOne(t, app, "agent-a", "")

	response, err := app.SubmitCase(context.Background(), SubmitRequest{
		InstructionID: instruction.InstructionID,
		CaseText:      caseTextFor(instruction),
	})
	require.NoError(t, err)
	assert.True(t, response.Accepted)
	assert.True(t, response.Stored)
	assert.Greater(t, response.TargetTOONLines, 0)
	assert.Equal(t, 1, app.Health().Submitted)

	// Exactement une ligne dans l'export des cas générés.
	data, err := os.ReadFile(filepath.Join(app.cfg.StateDir, storage.GeneratedTrainFile))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(string(data)), "\n")+1)

	_, err = app.SubmitCase(context.Background(), SubmitRequest{
		InstructionID: instruction.InstructionID,
		CaseText:      caseTextFor(instruction),
	})
	require.Error(t, err)
	reqErr := requireRequestError(t, err)
	assert.Equal(t, "already_submitted", reqErr.Kind)
}

func TestSubmitUnknownInstruction(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	_, err := app.SubmitCase(context.Background(), SubmitRequest{
		InstructionID: "INS-9999",
		CaseText:      "Mon père est décédé récemment.",
	})
	reqErr := requireRequestError(t, err)
	assert.Equal(t, "unknown_instruction", reqErr.Kind)
}

func TestSubmitMissingName(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	instruction := issueOne(t, app, "", "")

	_, err := app.SubmitCase(context.Background(), SubmitRequest{
		InstructionID: instruction.InstructionID,
		CaseText:      "Mon père est décédé récemment et la succession est compliquée pour tout le monde.",
	})
	reqErr := requireRequestError(t, err)
	assert.Equal(t, "missing_name", reqErr.Kind)
	assert.Contains(t, reqErr.Reason, "noms absents")
	assert.Equal(t, 0, app.Health().Submitted, "rejet sans persistance partielle")
}

func TestSubmitLeakage(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	instruction := issueOne(t, app, "", "")

	_, err := app.SubmitCase(context.Background(), SubmitRequest{
		InstructionID: instruction.InstructionID,
		CaseText:      caseTextFor(instruction) + " Il détenait un contrat ASSURANCE_VIE chez son assureur.",
	})
	reqErr := requireRequestError(t, err)
	assert.Equal(t, "leakage", reqErr.Kind)
	assert.Equal(t, 0, app.Health().Submitted)
}

func TestExhaustedAfterGenerationTarget(t *testing.T) {
	cfg := testConfig(t)
	cfg.TargetTotalCases = 1
	app := newTestApp(t, cfg)

	instruction := issueOne(t, app, "", "")
	_, err := app.SubmitCase(context.Background(), SubmitRequest{
		InstructionID: instruction.InstructionID,
		CaseText:      caseTextFor(instruction),
	})
	require.NoError(t, err)

	response, err := app.NextInstruction(context.Background(), "", "")
	require.NoError(t, err)
	exhausted, ok := response.(ExhaustedResponse)
	require.True(t, ok, "réponse d'épuisement attendue, reçu %T", response)
	assert.True(t, exhausted.Done)
	assert.Equal(t, "exhausted", exhausted.Kind)
	assert.NotEmpty(t, exhausted.Coverage)
}

func TestForcedTopicShareOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.Shares = map[string]map[string]float64{
		"primary_topic": {axes.TopicAssuranceVie: 1.0},
	}
	app := newTestApp(t, cfg)

	instruction := issueOne(t, app, "", "")
	assert.Equal(t, axes.TopicAssuranceVie, instruction.Dimensions.PrimaryTopic)

	decoded, err := stubCodec{}.Decode(context.Background(), instruction.TargetTOON)
	require.NoError(t, err)
	av, ok := decoded["assurance_vie"].(map[string]any)
	require.True(t, ok, "sous-arbre assurance_vie attendu dans la cible")
	contrats, ok := av["contrats"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, contrats)
}

func TestRestartReplaysState(t *testing.T) {
	cfg := testConfig(t)
	app := newTestApp(t, cfg)

	instruction := issueOne(t, app, "agent-a", "")
	_, err := app.SubmitCase(context.Background(), SubmitRequest{
		InstructionID: instruction.InstructionID,
		CaseText:      caseTextFor(instruction),
	})
	require.NoError(t, err)
	firstHealth := app.Health()
	firstSummary, err := os.ReadFile(filepath.Join(cfg.StateDir, storage.SummaryMDFilename))
	require.NoError(t, err)
	app.Close()

	restarted := newTestApp(t, cfg)
	assert.Equal(t, firstHealth, restarted.Health())
	secondSummary, err := os.ReadFile(filepath.Join(cfg.StateDir, storage.SummaryMDFilename))
	require.NoError(t, err)
	assert.Equal(t, string(firstSummary), string(secondSummary))

	// La numérotation reprend strictement après le journal rejoué.
	next := issueOne(t, restarted, "", "")
	assert.Equal(t, "INS-0002", next.InstructionID)

	// Rejouer exactement l'objectif de génération: un doublon reste rejeté.
	_, err = restarted.SubmitCase(context.Background(), SubmitRequest{
		InstructionID: instruction.InstructionID,
		CaseText:      caseTextFor(instruction),
	})
	reqErr := requireRequestError(t, err)
	assert.Equal(t, "already_submitted", reqErr.Kind)
}

func TestArchiveMirrorsSubmissions(t *testing.T) {
	cfg := testConfig(t)
	cfg.ArchiveEnabled = true
	app := newTestApp(t, cfg)

	instruction := issueOne(t, app, "", "")
	_, err := app.SubmitCase(context.Background(), SubmitRequest{
		InstructionID: instruction.InstructionID,
		CaseText:      caseTextFor(instruction),
	})
	require.NoError(t, err)
	app.Close()

	archive, err := store.Open(filepath.Join(cfg.StateDir, "archive.db"))
	require.NoError(t, err)
	defer archive.Close()
	entries, err := archive.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, instruction.InstructionID, entries[0].InstructionID)
}

func TestParseSubmitBody(t *testing.T) {
	t.Run("id manquant", func(t *testing.T) {
		_, err := ParseSubmitBody(map[string]any{"case_text": "texte"})
		assert.Equal(t, "invalid_payload", requireRequestError(t, err).Kind)
	})
	t.Run("texte vide", func(t *testing.T) {
		_, err := ParseSubmitBody(map[string]any{"instruction_id": "INS-0001", "case_text": "   "})
		assert.Equal(t, "invalid_payload", requireRequestError(t, err).Kind)
	})
	t.Run("cible côté client refusée", func(t *testing.T) {
		_, err := ParseSubmitBody(map[string]any{
			"instruction_id": "INS-0001",
			"case_text":      "Mon père est décédé.",
			"target_toon":    "famille:",
		})
		assert.Equal(t, "legacy_target", requireRequestError(t, err).Kind)
	})
	t.Run("corps valide", func(t *testing.T) {
		req, err := ParseSubmitBody(map[string]any{
			"instruction_id": " INS-0001 ",
			"case_text":      "Mon père est décédé.",
			"agent_id":       "agent-b",
		})
		require.NoError(t, err)
		assert.Equal(t, "INS-0001", req.InstructionID)
		assert.Equal(t, "agent-b", req.AgentID)
	})
}

func TestHTTPEndpoints(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	srv := httptest.NewServer(app.Handler())
	defer srv.Close()
	client := srv.Client()

	t.Run("health", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
		var health HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		assert.True(t, health.OK)
	})

	t.Run("méthode refusée", func(t *testing.T) {
		resp, err := client.Post(srv.URL+"/health", "application/json", strings.NewReader("{}"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("route inconnue", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/nope")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var body struct {
			Error struct {
				Kind string `json:"kind"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "not_found", body.Error.Kind)
	})

	t.Run("next-instruction puis submit-case", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/next-instruction?agent_id=agent-http")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var instruction InstructionResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&instruction))
		assert.Equal(t, "agent-http", instruction.AgentID)
		require.NotEmpty(t, instruction.MustInclude)

		payload, err := json.Marshal(map[string]any{
			"instruction_id": instruction.InstructionID,
			"case_text":      caseTextFor(instruction),
		})
		require.NoError(t, err)
		submitResp, err := client.Post(srv.URL+"/submit-case", "application/json", strings.NewReader(string(payload)))
		require.NoError(t, err)
		defer submitResp.Body.Close()
		require.Equal(t, http.StatusOK, submitResp.StatusCode)
		var submitted SubmitResponse
		require.NoError(t, json.NewDecoder(submitResp.Body).Decode(&submitted))
		assert.True(t, submitted.Accepted)
	})

	t.Run("JSON malformé", func(t *testing.T) {
		resp, err := client.Post(srv.URL+"/submit-case", "application/json", strings.NewReader("{pas du json"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("dashboard", func(t *testing.T) {
		resp, err := client.Get(srv.URL + "/dashboard")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var snapshot storage.Snapshot
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
		assert.NotEmpty(t, snapshot.Dimensions)
		assert.Equal(t, 10, snapshot.TargetTotalCases)
	})
}

func requireRequestError(t *testing.T, err error) *RequestError {
	t.Helper()
	require.Error(t, err)
	reqErr, ok := err.(*RequestError)
	require.True(t, ok, "RequestError attendu, reçu %T: %v", err, err)
	return reqErr
}
