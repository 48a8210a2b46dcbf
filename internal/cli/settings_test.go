package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindScoringFlags_EveryKeyFollowsItsFlag(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	require.NoError(t, bindScoringFlags(cmd, v))

	pf := cmd.PersistentFlags()
	require.NoError(t, pf.Set("dup-distance", "11"))
	require.NoError(t, pf.Set("model", "/srv/models/v2.onnx"))
	require.NoError(t, pf.Set("class-map", "/srv/models/v2.json"))
	require.NoError(t, pf.Set("onnx-library", "/usr/lib/libonnxruntime.so"))
	require.NoError(t, pf.Set("disable-dup-penalty", "true"))

	assert.Equal(t, 11, v.GetInt(keyDupDistance))
	assert.Equal(t, "/srv/models/v2.onnx", v.GetString(keyModelPath))
	assert.Equal(t, "/srv/models/v2.json", v.GetString(keyClassMapPath))
	assert.Equal(t, "/usr/lib/libonnxruntime.so", v.GetString(keyONNXLibraryPath))
	assert.True(t, v.GetBool(keyDisableDupPenalty))

	s, err := loadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, 11, s.DupDistance)
	assert.Equal(t, "/srv/models/v2.onnx", s.ModelPath)
}

func TestBindFlags_UnknownFlag(t *testing.T) {
	t.Parallel()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("dup-distance", 6, "")

	err := bindFlags(viper.New(), fs, map[string]string{keyDupDistance: "dup-distnace"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dup-distnace")

	assert.NoError(t, bindFlags(viper.New(), fs, map[string]string{keyDupDistance: "dup-distance"}))
}
