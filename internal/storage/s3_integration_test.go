//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
	"github.com/danielbwilkinson/jargon-rag/internal/testutil"
	"github.com/danielbwilkinson/jargon-rag/internal/vault"
)

func TestS3Source_Files(t *testing.T) {
	ctx := context.Background()

	rc := testutil.NewRustFSContainer(ctx, t)
	t.Cleanup(func() { _ = rc.Terminate(ctx) })

	src, err := NewS3Source(ctx, S3SourceConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     rc.AccessKey,
		SecretAccessKey: rc.SecretKey,
		Bucket:          "vault",
		Prefix:          "team",
	})
	require.NoError(t, err)
	require.NoError(t, src.EnsureBucket(ctx))
	require.NoError(t, src.EnsureBucket(ctx))

	primary, secondary, content := vault.Layout[0], vault.Layout[1], vault.Layout[2]
	require.NoError(t, src.PutNote(ctx, primary, "Active Directory", []byte("[[Kerberos]]")))
	require.NoError(t, src.PutNote(ctx, secondary, "Kerberos", []byte("[[Kerberoasting]]")))
	require.NoError(t, src.PutNote(ctx, content, "Kerberoasting", []byte("GetUserSPNs.py")))

	files, err := src.Files(ctx)
	require.NoError(t, err)

	require.Len(t, files, 3)
	assert.Equal(t, vault.File{Title: "Active Directory", Type: domain.NoteTypePrimary, Content: []byte("[[Kerberos]]")}, files[0])
	assert.Equal(t, domain.NoteTypeSecondary, files[1].Type)
	assert.Equal(t, "Kerberoasting", files[2].Title)
	assert.Equal(t, []byte("GetUserSPNs.py"), files[2].Content)
}
