package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbusfs/pkg/provider"
	"github.com/3leaps/nimbusfs/pkg/provider/file"
	"github.com/3leaps/nimbusfs/pkg/provider/minio"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "missing driver",
			config:  Config{Bucket: "b"},
			wantErr: "config: driver: driver is required",
		},
		{
			name:    "unknown driver",
			config:  Config{Driver: "ftp"},
			wantErr: `config: driver: unknown driver "ftp" (expected one of file, minio, qiniu, s3)`,
		},
		{
			name:    "s3 without bucket",
			config:  Config{Driver: "s3"},
			wantErr: "s3 config: Bucket: bucket name is required",
		},
		{
			name:    "qiniu without domain",
			config:  Config{Driver: "qiniu", Bucket: "b", AccessKey: "ak", SecretKey: "sk"},
			wantErr: "qiniu config: Domain: domain is required",
		},
		{
			name:    "minio without endpoint",
			config:  Config{Driver: "minio", Bucket: "b"},
			wantErr: "minio config: Endpoint: endpoint is required",
		},
		{
			name:    "file without root",
			config:  Config{Driver: "file"},
			wantErr: "file config: Root: root dir is required",
		},
		{
			name:   "driver name is case insensitive",
			config: Config{Driver: " S3 ", Bucket: "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, provider.IsConfigError(err))
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestConfig_Mapping(t *testing.T) {
	cfg := Config{
		Driver:    "minio",
		Bucket:    "media",
		Endpoint:  "localhost:9000",
		AccessKey: "ak",
		SecretKey: "sk",
		UseSSL:    true,
		Domain:    "cdn.example.com",
		MaxDepth:  8,
		Timeout:   5 * time.Second,

		IMDSRegion: true,
	}

	m := cfg.Minio()
	assert.Equal(t, "media", m.Bucket)
	assert.Equal(t, "ak", m.AccessKey)
	assert.True(t, m.UseSSL)
	assert.Equal(t, 8, m.MaxDepth)
	assert.Equal(t, 5*time.Second, m.Timeout)

	s := cfg.S3()
	assert.Equal(t, "ak", s.AccessKeyID)
	assert.Equal(t, "sk", s.SecretAccessKey)
	assert.True(t, s.IMDSRegion)

	q := cfg.Qiniu()
	assert.True(t, q.UseHTTPS, "use_ssl selects https hosts")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	a, err := Open(ctx, Config{Driver: "file", Root: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &file.Adapter{}, a)
	require.NoError(t, a.Close())

	a, err = Open(ctx, Config{Driver: "minio", Endpoint: "localhost:9000", Bucket: "b"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &minio.Adapter{}, a)

	a, err = Open(ctx, Config{Driver: "qiniu", Bucket: "b"}, nil)
	require.Error(t, err)
	assert.Nil(t, a, "no half-built adapter")
	assert.True(t, provider.IsConfigError(err))
}
