package inventory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const nodesYAML = `
- name: foo
  fqdn: foo.example.org
  ipaddress: 10.0.0.1
  roles: [web, base]
- name: bar
  fqdn: bar.example.org
  ipaddress: 10.0.0.2
  roles: [db]
  ec2:
    public_hostname: somewhere.com
- name: baz
  platform: windows
`

func writeInventory(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "nodes.yaml")
	require.NoError(t, os.WriteFile(p, []byte(nodesYAML), 0600))
	return p
}

func names(records []Record) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}

func TestFileInventorySearch(t *testing.T) {
	inv := NewFileInventory(writeInventory(t))

	tests := []struct {
		query string
		want  []string
	}{
		{"*:*", []string{"foo", "bar", "baz"}},
		{"", []string{"foo", "bar", "baz"}},
		{"roles:web", []string{"foo"}},
		{"fqdn:*.EXAMPLE.org", []string{"foo", "bar"}},
		{"ec2.public_hostname:*", []string{"bar"}},
		{"ba?", []string{"bar", "baz"}},
		{"roles:db fqdn:foo*", nil},
		{"platform:linux", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := inv.Search(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestFileInventoryErrors(t *testing.T) {
	_, err := NewFileInventory(filepath.Join(t.TempDir(), "none.yaml")).Search(context.Background(), "*:*")
	assert.Error(t, err)

	_, err = NewFileInventory(writeInventory(t)).Search(context.Background(), "roles:")
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = NewFileInventory(writeInventory(t)).Search(context.Background(), "roles:[web")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestMongoFilter(t *testing.T) {
	assert.Equal(t, bson.M{}, Filter(nil))

	terms, err := ParseQuery("roles:web* ec2.public_hostname:a.b")
	require.NoError(t, err)
	got := Filter(terms)
	assert.Equal(t, bson.M{"$and": bson.A{
		bson.M{"roles": primitive.Regex{Pattern: `^web.*$`, Options: "i"}},
		bson.M{"ec2.public_hostname": primitive.Regex{Pattern: `^a\.b$`, Options: "i"}},
	}}, got)
}

func TestNormalize(t *testing.T) {
	doc := bson.M{
		"name": "foo",
		"ec2":  primitive.D{{Key: "public_hostname", Value: "somewhere.com"}},
		"tags": primitive.A{"a", primitive.M{"k": "v"}},
	}
	attrs, ok := normalize(doc).(map[string]any)
	require.True(t, ok)
	r := recordFromMap(attrs)
	assert.Equal(t, "foo", r.Name)

	terms, err := ParseQuery("ec2.public_hostname:somewhere.com tags:a")
	require.NoError(t, err)
	assert.True(t, MatchAll(terms, r))

	assert.Equal(t, []any{"a", map[string]any{"k": "v"}}, attrs["tags"])
}
