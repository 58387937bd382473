package config

import (
	"time"

	"github.com/pkg/errors"

	"go.viam.com/navbench/episode"
)

const (
	simulatorSettle = Duration(5 * time.Second)
	bridgeSettle    = Duration(2 * time.Second)
)

// PresetConfig returns the full configuration of a named preset.
func PresetConfig(preset string) (*Config, error) {
	switch episode.Preset(preset) {
	case episode.PresetBARN:
		return BARNConfig(), nil
	case episode.PresetSpeed:
		return SpeedConfig(), nil
	default:
		return nil, errors.Errorf("unknown preset %q", preset)
	}
}

func rosbridgeLaunch() LaunchConfig {
	return LaunchConfig{
		Package:    "rosbridge_server",
		LaunchFile: "launch/rosbridge_websocket.launch",
		Settle:     bridgeSettle,
	}
}

func recorderLaunch() LaunchConfig {
	return LaunchConfig{
		Package:    "robust_fast_navigation",
		LaunchFile: "launch/record_bag.launch",
		Args: map[string]string{
			"path":     "{{" + VarBagDir + "}}",
			"bag_name": "{{" + VarBagName + "}}",
		},
		Disabled: true,
	}
}

// BARNConfig runs one world of the BARN challenge.
func BARNConfig() *Config {
	return &Config{
		Preset:      episode.PresetBARN,
		BridgeURL:   DefaultBridgeURL,
		WorldsDir:   "{{pkg:jackal_gazebo}}/worlds",
		BagDir:      "{{pkg:robust_fast_navigation}}/bags",
		BagName:     "barn_world_{{world_idx}}_{{timestamp}}",
		RecordIndex: IndexWorld,
		Goal: GoalConfig{
			Topic:   "/gap_goal",
			FrameID: "map",
		},
		Simulator: LaunchConfig{
			Package:    "jackal_gazebo",
			LaunchFile: "launch/barn_world.launch",
			Args: map[string]string{
				"world_name": "{{pkg:jackal_gazebo}}/worlds/BARN/world_{{world_idx}}.world",
				"gui":        "{{gui}}",
			},
			Settle: simulatorSettle,
		},
		Recorder: recorderLaunch(),
		Bridge:   rosbridgeLaunch(),
		NavStack: LaunchConfig{
			Package:    "robust_fast_navigation",
			LaunchFile: "launch/navigation_stack.launch",
			Settle:     Duration(time.Second),
		},
		Planner: PlannerConfig{
			LaunchConfig: LaunchConfig{
				Package:    "robust_fast_navigation",
				LaunchFile: "launch/planner.launch",
			},
		},
	}
}

// SpeedConfig runs the max-speed sweep in the occluded trap world. The goal is never published
// and the planner is told the distance to it instead.
func SpeedConfig() *Config {
	return &Config{
		Preset:      episode.PresetSpeed,
		BridgeURL:   DefaultBridgeURL,
		WorldsDir:   "{{pkg:jackal_helper}}/worlds",
		BagDir:      "{{pkg:robust_fast_navigation}}/bags",
		BagName:     "occluded_trap_{{max_speed}}_{{timestamp}}",
		RecordIndex: IndexMaxSpeed,
		Env: []string{
			"JACKAL_LASER=1",
			"JACKAL_LASER_MODEL=ust10",
			"JACKAL_LASER_OFFSET=-0.065 0 0.01",
		},
		Goal: GoalConfig{
			Topic:    "/final_goal",
			FrameID:  "odom",
			Disabled: true,
		},
		Simulator: LaunchConfig{
			Package:    "jackal_helper",
			LaunchFile: "launch/gazebo_launch.launch",
			Args: map[string]string{
				"world_name": "{{pkg:jackal_gazebo}}/worlds/occluded_trap.world",
				"gui":        "{{gui}}",
			},
			Settle: simulatorSettle,
		},
		Recorder: recorderLaunch(),
		Bridge:   rosbridgeLaunch(),
		NavStack: LaunchConfig{
			Package:    "robust_fast_navigation",
			LaunchFile: "launch/navigation_stack.launch",
			Settle:     Duration(3 * time.Second),
		},
		Planner: PlannerConfig{
			LaunchConfig: LaunchConfig{
				Package:    "robust_fast_navigation",
				LaunchFile: "launch/planner_gurobi.launch",
				Args: map[string]string{
					"barn":      "true",
					"barn_dist": "{{" + VarBarnDist + "}}",
					"max_vel":   "{{" + VarMaxSpeed + "}}",
				},
			},
			SolverLaunchFiles: map[string]string{"1": "launch/planner.launch"},
		},
	}
}
