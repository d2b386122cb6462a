package robot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_SaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "roarm.yaml")

	cfg := &Config{
		Follower: ArmConfig{
			Port: "/dev/ttyACM0",
			Calibration: Calibration{
				Base: JointCalibration{ID: 1, HomingOffset: 2000, RangeMin: 900, RangeMax: 3100},
			},
		},
		Link: LinkConfig{Port: "/dev/ttyGS0"},
		Mode: "follower",
	}
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadConfigFrom(path)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM0", loaded.Follower.Port)
	require.Equal(t, "/dev/ttyGS0", loaded.Link.Port)
	require.Equal(t, DefaultLinkBaudRate, loaded.Link.BaudRate)
	require.Equal(t, DefaultLoopHz, loaded.LoopHz)
	require.Equal(t, DefaultGeometry(), loaded.Geometry)
	require.Equal(t, 2000, loaded.Follower.Calibration[Base].HomingOffset)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.Error(t, (&Config{}).Validate())
	require.NoError(t, (&Config{Follower: ArmConfig{Sim: true}}).Validate())
	require.Error(t, (&Config{Follower: ArmConfig{Sim: true}, LoopHz: 10}).Validate())

	cfg := DefaultConfig()
	require.Equal(t, DefaultMode, cfg.Mode)
	require.Equal(t, DefaultPrefsDir, cfg.PrefsDir)
	require.Len(t, cfg.Follower.Calibration, len(AllJoints()))
}

func TestLoadConfigFrom_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_RecordBroker(t *testing.T) {
	t.Parallel()

	cfg := &Config{Follower: ArmConfig{Sim: true}, Record: RecordConfig{Broker: "broker.local:1883"}}
	require.Error(t, cfg.Validate())

	cfg.Record.Broker = "mqtt://broker.local:1883/lab"
	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultOutputDir, cfg.Record.OutputDir)
}

func TestConfigExists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "roarm.yaml")
	require.False(t, ConfigExists(path))

	require.NoError(t, DefaultConfig().SaveTo(path))
	require.True(t, ConfigExists(path))
}
