package main

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_StartupFailuresReturnExitCode(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	deadAddr := mr.Addr()
	mr.Close()

	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "invalid config",
			env:  map[string]string{"STORAGE_DRIVER": "etcd"},
		},
		{
			name: "storage unreachable",
			env:  map[string]string{"STORAGE_DRIVER": "redis", "REDIS_URL": deadAddr},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer viper.Reset()
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			assert.Equal(t, 1, run())
		})
	}
}
