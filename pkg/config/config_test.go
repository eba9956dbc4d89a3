package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Platform: PlatformConfig{BaseURL: "https://alita.example.com"},
	}
	cfg.SetDefaults()
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "minimal valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Platform.BaseURL = "" },
			wantErr: "base_url is required",
		},
		{
			name: "toolkit stdio without command",
			mutate: func(c *Config) {
				c.Toolkits = map[string]*ToolkitConfig{
					"broken": {Type: "mcp", Transport: "stdio"},
				}
			},
			wantErr: "command is required",
		},
		{
			name: "plugin without path",
			mutate: func(c *Config) {
				c.Toolkits = map[string]*ToolkitConfig{
					"broken": {Type: "plugin"},
				}
			},
			wantErr: "path is required",
		},
		{
			name: "store references unknown database",
			mutate: func(c *Config) {
				c.Store = StoreConfig{Backend: "sql", Database: "missing"}
			},
			wantErr: `database "missing" not found`,
		},
		{
			name: "invalid database driver",
			mutate: func(c *Config) {
				c.Databases = map[string]*DatabaseConfig{
					"runs": {Driver: "oracle", Database: "runs"},
				}
			},
			wantErr: "invalid driver",
		},
		{
			name: "invalid log level",
			mutate: func(c *Config) {
				c.Logger.Level = "loud"
			},
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSuiteValidate(t *testing.T) {
	suite := &SuiteConfig{
		Cases: []*CaseConfig{
			{Name: "a", Seed: SeedConfig{File: "a.yaml"}},
			{Name: "a", Seed: SeedConfig{File: "b.yaml"}},
		},
	}
	suite.SetDefaults()

	err := suite.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate case name")
}

func TestCaseValidate(t *testing.T) {
	tests := []struct {
		name    string
		tc      CaseConfig
		wantErr string
	}{
		{
			name:    "missing name",
			tc:      CaseConfig{Seed: SeedConfig{File: "p.yaml"}},
			wantErr: "name is required",
		},
		{
			name:    "seed without source",
			tc:      CaseConfig{Name: "x"},
			wantErr: "either file or pipeline is required",
		},
		{
			name: "seed with both sources",
			tc: CaseConfig{
				Name: "x",
				Seed: SeedConfig{File: "p.yaml", Pipeline: map[string]any{"name": "p"}},
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "bad status",
			tc: CaseConfig{
				Name:   "x",
				Seed:   SeedConfig{File: "p.yaml"},
				Expect: ExpectConfig{Status: "done"},
			},
			wantErr: "invalid expect.status",
		},
		{
			name: "check without assertion",
			tc: CaseConfig{
				Name: "x",
				Seed: SeedConfig{File: "p.yaml"},
				Expect: ExpectConfig{
					Checks: []*CheckConfig{{Path: "result"}},
				},
			},
			wantErr: "either equals or pattern is required",
		},
		{
			name: "extract with both path and regex",
			tc: CaseConfig{
				Name: "x",
				Seed: SeedConfig{File: "p.yaml"},
				Extract: map[string]*ExtractConfig{
					"id": {Path: "result.id", Regex: `id=(\d+)`},
				},
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "bad cleanup policy",
			tc: CaseConfig{
				Name:    "x",
				Seed:    SeedConfig{File: "p.yaml"},
				Cleanup: "sometimes",
			},
			wantErr: "invalid cleanup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tc.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "postgres",
			cfg: DatabaseConfig{
				Driver: "postgres", Host: "db", Port: 5432, Database: "runs",
				Username: "alita", Password: "s3cret", SSLMode: "disable",
			},
			want: "host=db port=5432 dbname=runs user=alita password=s3cret sslmode=disable",
		},
		{
			name: "mysql",
			cfg: DatabaseConfig{
				Driver: "mysql", Host: "db", Port: 3306, Database: "runs",
				Username: "alita", Password: "s3cret",
			},
			want: "alita:s3cret@tcp(db:3306)/runs",
		},
		{
			name: "sqlite path",
			cfg:  DatabaseConfig{Driver: "sqlite", Database: "/tmp/runs.db"},
			want: "/tmp/runs.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}

	assert.Equal(t, "sqlite3", (&DatabaseConfig{Driver: "sqlite"}).DriverName())
	assert.Equal(t, "sqlite", (&DatabaseConfig{Driver: "sqlite3"}).Dialect())
}

func TestDBPoolSQLite(t *testing.T) {
	cfg := &DatabaseConfig{Driver: "sqlite", Database: t.TempDir() + "/runs.db"}
	cfg.SetDefaults()

	pool := NewDBPool()
	defer pool.Close()

	db1, err := pool.Get(cfg)
	require.NoError(t, err)
	db2, err := pool.Get(cfg)
	require.NoError(t, err)

	assert.Same(t, db1, db2)
	assert.NoError(t, db1.Ping())
}
