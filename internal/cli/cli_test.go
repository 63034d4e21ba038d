package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcopeg/mondo-sub000/internal/config"
	"github.com/marcopeg/mondo-sub000/internal/index"
	"github.com/marcopeg/mondo-sub000/internal/model"
	"github.com/marcopeg/mondo-sub000/internal/relations"
	"github.com/marcopeg/mondo-sub000/internal/testutil"
	"github.com/marcopeg/mondo-sub000/internal/vault"
)

var captureStdoutMu sync.Mutex

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	captureStdoutMu.Lock()
	defer captureStdoutMu.Unlock()

	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	outputCh := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		_ = r.Close()
		outputCh <- buf.String()
	}()

	fn()

	os.Stdout = orig
	_ = w.Close()
	return <-outputCh
}

// envelope decodes a JSON response with a typed data payload.
type envelope[T any] struct {
	OK       bool       `json:"ok"`
	Data     T          `json:"data"`
	Error    *ErrorInfo `json:"error"`
	Warnings []Warning  `json:"warnings"`
	Meta     *Meta      `json:"meta"`
}

func decode[T any](t *testing.T, out string) envelope[T] {
	t.Helper()
	var resp envelope[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

// setupVault builds a company/person/task vault and points the CLI's
// global state at it in JSON mode.
func setupVault(t *testing.T) *testutil.TestVault {
	t.Helper()
	v := testutil.NewTestVault(t).
		WithEntities(testutil.CompanyPeopleEntities()).
		WithNote("companies/acme.md", map[string]any{"type": "company", "show": "Acme"}, "# Acme\n").
		WithNote("people/alice.md", map[string]any{"type": "person", "show": "Alice", "company": []any{"[[companies/acme]]"}}, "").
		WithNote("people/bob.md", map[string]any{"type": "person", "show": "Bob", "company": "[[acme]]"}, "").
		WithNote("tasks/launch.md", map[string]any{"type": "task", "show": "Launch"}, "").
		Build()

	prevVault := resolvedVaultPath
	prevJSON := jsonOutput
	prevCfg := cfg
	prevEntities := entitiesFlag
	t.Cleanup(func() {
		resolvedVaultPath = prevVault
		jsonOutput = prevJSON
		cfg = prevCfg
		entitiesFlag = prevEntities
	})
	resolvedVaultPath = v.Path
	jsonOutput = true
	cfg = &config.Config{}
	entitiesFlag = ""
	return v
}

func run(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	return captureStdout(t, func() {
		require.NoError(t, cmd.RunE(cmd, args))
	})
}

// setFlag sets a command flag for one test and resets it afterwards.
func setFlag(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	flag := cmd.Flags().Lookup(name)
	require.NotNil(t, flag)
	prev := flag.Value.String()
	require.NoError(t, cmd.Flags().Set(name, value))
	t.Cleanup(func() {
		_ = flag.Value.Set(prev)
		flag.Changed = false
	})
}

func TestRelatedListsPanelRows(t *testing.T) {
	setupVault(t)

	resp := decode[struct {
		Host  string          `json:"host"`
		Panel relations.Panel `json:"panel"`
	}](t, run(t, relatedCmd, "companies/acme", "people"))

	require.True(t, resp.OK)
	assert.Equal(t, "companies/acme.md", resp.Data.Host)
	assert.Equal(t, "People", resp.Data.Panel.Title)
	assert.True(t, resp.Data.Panel.CanCreate)

	var ids []string
	for _, row := range resp.Data.Panel.Rows {
		ids = append(ids, row.ID)
	}
	assert.Equal(t, []string{"people/alice.md", "people/bob.md"}, ids)
	assert.Equal(t, 2, resp.Meta.Count)
}

func TestRelatedReportsErrorCodes(t *testing.T) {
	setupVault(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown note", []string{"nobody", "people"}, ErrNoteNotFound},
		{"unknown panel", []string{"companies/acme", "nope"}, ErrPanelNotFound},
		{"unconfigured type", []string{"tasks/launch", "people"}, ErrPanelNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decode[any](t, run(t, relatedCmd, tt.args...))
			assert.False(t, resp.OK)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestRelatedReportsInvalidEntities(t *testing.T) {
	v := setupVault(t)
	require.NoError(t, os.WriteFile(filepath.Join(v.Path, testutil.EntitiesFile), []byte("entities: ["), 0o644))

	resp := decode[any](t, run(t, relatedCmd, "companies/acme", "people"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrEntitiesInvalid, resp.Error.Code)
}

func TestEntitiesFlagOverridesLocation(t *testing.T) {
	v := setupVault(t)
	alt := filepath.Join(t.TempDir(), "alt.yaml")
	require.NoError(t, os.WriteFile(alt, []byte("entities:\n  memo: {}\n"), 0o644))
	entitiesFlag = alt

	resp := decode[struct {
		File     string       `json:"file"`
		Entities []EntityJSON `json:"entities"`
	}](t, run(t, entitiesCmd))

	require.True(t, resp.OK)
	assert.Equal(t, alt, resp.Data.File)
	require.Len(t, resp.Data.Entities, 1)
	assert.Equal(t, "memo", resp.Data.Entities[0].Type)
	assert.True(t, v.FileExists(testutil.EntitiesFile))
}

func TestEntitiesSummarisesConfiguration(t *testing.T) {
	setupVault(t)

	resp := decode[struct {
		Entities []EntityJSON `json:"entities"`
	}](t, run(t, entitiesCmd))

	require.True(t, resp.OK)
	require.Len(t, resp.Data.Entities, 3)
	company := resp.Data.Entities[0]
	assert.Equal(t, "company", company.Type)
	assert.Equal(t, "Company", company.Label)
	assert.Equal(t, "companies", company.Folder)
	assert.Equal(t, 1, company.Notes)
	assert.Equal(t, []string{"people"}, company.Panels)
	assert.Equal(t, []string{"task"}, company.Actions)

	task := resp.Data.Entities[2]
	assert.Equal(t, []string{"owner"}, task.Fields)
}

func TestCreateRunsCreateRelatedAction(t *testing.T) {
	v := setupVault(t)

	resp := decode[map[string]any](t, run(t, createCmd, "companies/acme", "task"))

	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "tasks/new-task-for-acme.md", resp.Data["id"])
	assert.Equal(t, true, resp.Data["created"])

	meta := v.Metadata("tasks/new-task-for-acme.md")
	assert.Equal(t, "task", meta["type"])
	assert.Equal(t, "New Task for Acme", meta["show"])
	assert.Equal(t, []any{"[[companies/acme]]"}, meta["company"])
}

func TestCreateNeverOverwrites(t *testing.T) {
	v := setupVault(t)

	run(t, createCmd, "companies/acme", "task")
	resp := decode[map[string]any](t, run(t, createCmd, "companies/acme", "task"))

	require.True(t, resp.OK)
	assert.Equal(t, "tasks/new-task-for-acme-1.md", resp.Data["id"])
	assert.True(t, v.FileExists("tasks/new-task-for-acme.md"))
}

func TestCreateThroughPanelLinksBack(t *testing.T) {
	v := setupVault(t)
	setFlag(t, createCmd, "title", "Carol")

	resp := decode[map[string]any](t, run(t, createCmd, "companies/acme", "people"))

	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "people/carol.md", resp.Data["id"])
	assert.Equal(t, []any{"[[companies/acme]]"}, v.Metadata("people/carol.md")["company"])

	related := decode[struct {
		Panel relations.Panel `json:"panel"`
	}](t, run(t, relatedCmd, "companies/acme", "people"))
	assert.Len(t, related.Data.Panel.Rows, 3)
}

func TestCreateUnknownKey(t *testing.T) {
	setupVault(t)

	resp := decode[any](t, run(t, createCmd, "companies/acme", "nothing"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrPanelNotFound, resp.Error.Code)
}

func TestPickListsCandidates(t *testing.T) {
	setupVault(t)

	resp := decode[struct {
		Property   string          `json:"property"`
		Multiple   bool            `json:"multiple"`
		Candidates []CandidateJSON `json:"candidates"`
	}](t, run(t, pickCmd, "tasks/launch", "owner", "ali"))

	require.True(t, resp.OK)
	assert.Equal(t, "owner", resp.Data.Property)
	assert.False(t, resp.Data.Multiple)
	require.Len(t, resp.Data.Candidates, 1)
	assert.Equal(t, "people/alice.md", resp.Data.Candidates[0].ID)
	assert.Equal(t, "Alice", resp.Data.Candidates[0].Title)
}

func TestPickSelectSetsSingleValuedField(t *testing.T) {
	v := setupVault(t)
	setFlag(t, pickCmd, "select", "alice")

	resp := decode[map[string]any](t, run(t, pickCmd, "tasks/launch", "owner"))
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, false, resp.Data["created"])
	assert.Equal(t, "[[people/alice]]", v.Metadata("tasks/launch.md")["owner"])

	setFlag(t, pickCmd, "select", "bob")
	run(t, pickCmd, "tasks/launch", "owner")
	assert.Equal(t, "[[people/bob]]", v.Metadata("tasks/launch.md")["owner"])
}

func TestPickCreateMakesAndLinksNote(t *testing.T) {
	v := setupVault(t)
	setFlag(t, pickCmd, "create", "Dana")

	resp := decode[map[string]any](t, run(t, pickCmd, "tasks/launch", "owner"))
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, "people/dana.md", resp.Data["id"])
	assert.Equal(t, "person", v.Metadata("people/dana.md")["type"])
	assert.Equal(t, "[[people/dana]]", v.Metadata("tasks/launch.md")["owner"])
}

func TestPickRejectsSelfLinkAndConflictingFlags(t *testing.T) {
	setupVault(t)

	t.Run("self link", func(t *testing.T) {
		setFlag(t, pickCmd, "select", "tasks/launch")
		resp := decode[any](t, run(t, pickCmd, "tasks/launch", "owner"))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrSelfLink, resp.Error.Code)
	})
	t.Run("select and create", func(t *testing.T) {
		setFlag(t, pickCmd, "select", "alice")
		setFlag(t, pickCmd, "create", "x")
		resp := decode[any](t, run(t, pickCmd, "tasks/launch", "owner"))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrInvalidInput, resp.Error.Code)
	})
	t.Run("unknown field", func(t *testing.T) {
		resp := decode[any](t, run(t, pickCmd, "tasks/launch", "missing"))
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrFieldNotFound, resp.Error.Code)
	})
}

func TestLinkAndUnlink(t *testing.T) {
	v := setupVault(t)

	resp := decode[map[string]any](t, run(t, linkCmd, "tasks/launch", "watchers", "people/bob"))
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, true, resp.Data["changed"])
	assert.Equal(t, []any{"[[people/bob]]"}, v.Metadata("tasks/launch.md")["watchers"])

	again := decode[map[string]any](t, run(t, linkCmd, "tasks/launch", "watchers", "bob"))
	assert.Equal(t, false, again.Data["changed"])
	assert.Equal(t, []any{"[[people/bob]]"}, v.Metadata("tasks/launch.md")["watchers"])

	removed := decode[map[string]any](t, run(t, unlinkCmd, "tasks/launch", "watchers", "bob"))
	assert.Equal(t, true, removed.Data["changed"])
	_, present := v.Metadata("tasks/launch.md")["watchers"]
	assert.False(t, present)
}

func TestLinkKeepsExistingSpelling(t *testing.T) {
	v := setupVault(t)

	resp := decode[map[string]any](t, run(t, linkCmd, "people/bob", "company", "companies/acme"))
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, false, resp.Data["changed"])
	assert.Equal(t, "[[acme]]", v.Metadata("people/bob.md")["company"])
}

func TestUnlinkRemovesEverySpelling(t *testing.T) {
	v := setupVault(t)

	resp := decode[map[string]any](t, run(t, unlinkCmd, "people/bob", "company", "companies/acme"))
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, true, resp.Data["changed"])
	_, present := v.Metadata("people/bob.md")["company"]
	assert.False(t, present)
}

func TestReindexRebuildsIndex(t *testing.T) {
	v := setupVault(t)

	resp := decode[index.SyncResult](t, run(t, reindexCmd))
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 4, resp.Data.Indexed)
	assert.True(t, v.FileExists(".mondo/index.db"))

	db, err := index.Open(v.Path, nil)
	require.NoError(t, err)
	defer db.Close()
	n, err := db.Count(commandContext(reindexCmd))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

// addArchivedAcme adds a second note named "acme" so short links to it
// become ambiguous.
func addArchivedAcme(t *testing.T, v *testutil.TestVault) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(v.Path, "archive"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(v.Path, "archive", "acme.md"),
		[]byte("---\ntype: company\nshow: Old Acme\n---\n"), 0o644))
}

func TestReindexReportsNameCollisions(t *testing.T) {
	v := setupVault(t)
	addArchivedAcme(t, v)

	resp := decode[index.SyncResult](t, run(t, reindexCmd))
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, 5, resp.Data.Indexed)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, "NAME_COLLISION", resp.Warnings[0].Code)
	assert.Equal(t, "archive/acme.md, companies/acme.md", resp.Warnings[0].Ref)
}

func TestAmbiguousLinksAreReported(t *testing.T) {
	v := setupVault(t)
	addArchivedAcme(t, v)

	ws, err := openWorkspace(commandContext(relatedCmd))
	require.NoError(t, err)
	defer ws.Close()

	bob, err := ws.note("people/bob")
	require.NoError(t, err)
	warnings := ws.ambiguousLinks(bob)
	require.Len(t, warnings, 1)
	assert.Equal(t, "AMBIGUOUS_LINK", warnings[0].Code)
	assert.Equal(t, "people/bob.md", warnings[0].Ref)
	assert.Contains(t, warnings[0].Message, "archive/acme.md, companies/acme.md")

	alice, err := ws.note("people/alice")
	require.NoError(t, err)
	assert.Empty(t, ws.ambiguousLinks(alice), "full paths are never ambiguous")
}

func TestRootRejectsMissingVault(t *testing.T) {
	setupVault(t)
	confPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(confPath, nil, 0o644))

	prevPath, prevConf := vaultPathFlag, configPath
	t.Cleanup(func() { vaultPathFlag, configPath = prevPath, prevConf })
	vaultPathFlag = filepath.Join(t.TempDir(), "missing")
	configPath = confPath

	var err error
	out := captureStdout(t, func() {
		err = rootCmd.PersistentPreRunE(relatedCmd, nil)
	})
	require.Error(t, err)
	resp := decode[any](t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrVaultNotFound, resp.Error.Code)
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{&relations.CreationError{Path: "a.md", Err: errors.New("disk")}, ErrCreationFailed},
		{&relations.LinkingError{Note: model.New("a.md", nil), Err: relations.ErrAbandoned}, ErrLinkingFailed},
		{relations.ErrAbandoned, ErrAbandoned},
		{fmt.Errorf("x: %w", relations.ErrUnknownEntity), ErrTypeNotFound},
		{fmt.Errorf("x: %w", vault.ErrNoteNotFound), ErrNoteNotFound},
		{index.ErrIndexLocked, ErrIndexLocked},
		{fail(ErrDatabaseError, vault.ErrNoteNotFound, ""), ErrDatabaseError},
		{errors.New("boom"), ErrInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, codeFor(tt.err), tt.err.Error())
	}

	details := detailsFor(&relations.LinkingError{Note: model.New("tasks/a.md", nil), Err: errors.New("x")})
	assert.Equal(t, map[string]string{"note": "tasks/a.md"}, details)
}

func TestLevelFlag(t *testing.T) {
	var l levelFlag
	require.NoError(t, l.Set(" Debug "))
	assert.Equal(t, "debug", l.String())
	assert.Equal(t, "level", l.Type())
	assert.Error(t, l.Set("loud"))
	assert.Equal(t, "debug", l.String())
}
