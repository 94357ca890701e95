package blocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrichflow/enrichflow/block"
	"github.com/enrichflow/enrichflow/types"
)

func TestEmailClassify_SingleAddress(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		wantKind string
		wantRole bool
	}{
		{"corporate", "jane.doe@acme-corp.com", EmailCorporate, false},
		{"free mail", "jane@gmail.com", EmailFree, false},
		{"disposable", "x@mailinator.com", EmailDisposable, false},
		{"role account", "support@acme-corp.com", EmailCorporate, true},
		{"role with plus tag", "info+leads@acme-corp.com", EmailCorporate, true},
		{"uppercase normalized", "Jane@GMAIL.com", EmailFree, false},
		{"missing at", "janedoe.example.com", EmailInvalid, false},
		{"empty local part", "@example.com", EmailInvalid, false},
		{"bare domain tld", "jane@localhost", EmailInvalid, false},
	}

	b := &EmailClassify{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := b.Execute(context.Background(), nil, tt.email, prodContext())
			require.NoError(t, err)

			record, ok := out.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, record["kind"])
			assert.Equal(t, tt.wantRole, record["role"])
		})
	}
}

func TestEmailClassify_BatchAndMapInput(t *testing.T) {
	b := &EmailClassify{}

	out, err := b.Execute(context.Background(), nil, []any{"a@gmail.com", "b@yopmail.com"}, prodContext())
	require.NoError(t, err)
	records, ok := out.([]map[string]any)
	require.True(t, ok)
	require.Len(t, records, 2)
	assert.Equal(t, EmailFree, records[0]["kind"])
	assert.Equal(t, EmailDisposable, records[1]["kind"])

	out, err = b.Execute(context.Background(), nil, map[string]any{"email": "ceo@startup.io", "name": "X"}, prodContext())
	require.NoError(t, err)
	record := out.(map[string]any)
	assert.Equal(t, EmailCorporate, record["kind"])
	assert.Equal(t, "startup.io", record["domain"])
}

func TestEmailClassify_RejectsUnsupportedInput(t *testing.T) {
	b := &EmailClassify{}

	_, err := b.Execute(context.Background(), nil, 42, prodContext())
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))

	_, err = b.Execute(context.Background(), nil, map[string]any{"name": "no email"}, prodContext())
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))

	_, err = b.Execute(context.Background(), nil, []any{"ok@example.com", 7}, prodContext())
	require.Error(t, err)
	assert.Equal(t, types.ErrValidation, types.GetErrorCode(err))
}

func TestEmailClassify_InRegistry(t *testing.T) {
	r := block.NewRegistry()
	require.NoError(t, RegisterAll(r, testDeps(t)))

	b, err := r.Create("email_classify")
	require.NoError(t, err)

	out, err := b.Execute(context.Background(), nil, "dev@proton.me", prodContext())
	require.NoError(t, err)
	assert.Equal(t, EmailFree, out.(map[string]any)["kind"])
}
