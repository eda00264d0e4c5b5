package config

import (
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/change-adapter/internal/credential"
	"github.com/nhle/change-adapter/internal/model"
)

func validFields() Fields {
	f := NewFields()
	f.ID = " snow-1 "
	f.URL = "https://acme.service-now.com/"
	f.Username = "admin"
	return f
}

func TestAdapterConfigFromFields(t *testing.T) {
	inst, err := validFields().AdapterConfig()
	require.NoError(t, err)

	assert.Equal(t, "snow-1", inst.ID)
	assert.Equal(t, "https://acme.service-now.com", inst.URL)
	assert.Equal(t, "admin", inst.Auth.Username)
	assert.Empty(t, inst.Auth.Password)
	assert.Equal(t, model.DefaultTable, inst.Table)
	assert.Equal(t, 60, inst.HealthIntervalSec)
	assert.Equal(t, model.MissingBodyDrop, inst.MissingBody)
	assert.True(t, inst.Enabled)
}

func TestAdapterConfigRejectsBadInterval(t *testing.T) {
	f := validFields()
	f.Interval = "soon"

	_, err := f.AdapterConfig()
	assert.Error(t, err)
}

func TestFieldsFromRoundTrip(t *testing.T) {
	inst := model.AdapterConfig{
		ID: "snow-2", URL: "https://x.example.com", Table: "incident",
		Auth:    model.AuthConfig{Username: "u", Password: "ignored"},
		Enabled: false, HealthIntervalSec: 15, MissingBody: model.MissingBodyError,
	}

	f := FieldsFrom(inst)
	assert.Empty(t, f.Password)

	got, err := f.AdapterConfig()
	require.NoError(t, err)
	inst.Auth.Password = ""
	assert.Equal(t, inst, got)
}

func TestApplyReplacesByID(t *testing.T) {
	cfg := &model.AppConfig{Instances: []model.AdapterConfig{{ID: "a", URL: "http://old"}}}

	Apply(cfg, model.AdapterConfig{ID: "a", URL: "http://new"})
	Apply(cfg, model.AdapterConfig{ID: "b", URL: "http://b"})

	require.Len(t, cfg.Instances, 2)
	assert.Equal(t, "http://new", cfg.Instances[0].URL)
	assert.Equal(t, "b", cfg.Instances[1].ID)
}

func TestSaveStoresPasswordInKeyring(t *testing.T) {
	t.Cleanup(credential.UseStore(keyring.NewArrayKeyring(nil)))
	path := filepath.Join(t.TempDir(), "config.yaml")

	f := validFields()
	f.Password = "s3cret"
	cfg := &model.AppConfig{}

	inst, err := Save(path, cfg, f)
	require.NoError(t, err)
	assert.Equal(t, "snow-1", inst.ID)

	pw, err := credential.Get(credential.PasswordKey("snow-1"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	loaded, err := model.LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, loaded.Instances, 1)
	assert.Empty(t, loaded.Instances[0].Auth.Password)
}

func TestValidators(t *testing.T) {
	assert.Error(t, validateRequired("X")("  "))
	assert.NoError(t, validateRequired("X")("v"))

	assert.Error(t, validateURL(""))
	assert.Error(t, validateURL("acme.service-now.com"))
	assert.NoError(t, validateURL("https://acme.service-now.com"))

	assert.Error(t, validateInterval("0"))
	assert.Error(t, validateInterval("-5"))
	assert.NoError(t, validateInterval("30"))
}
