package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/facegate/facegate/internal/constants"
)

//go:embed poses.yaml
var posesYAML []byte

type Config struct {
	Match    MatchConfig
	Detector DetectorConfig
	Enroll   EnrollConfig
	Camera   CameraConfig
	Gallery  GalleryConfig
	Shell    ShellConfig
	Web      WebConfig
}

type MatchConfig struct {
	DistanceThreshold float64 // maximum Euclidean distance for an accepted match
	Margin            float64 // required gap between best and second-best person
}

type DetectorConfig struct {
	ModelURL      string  // base URL of the detection/embedding model service
	InputSize     int     // detector input size in pixels (default 320)
	MinConfidence float64 // minimum detection score (default 0.8)
	MinFaceWidth  int     // minimum face box width in pixels (default 120)
}

type EnrollConfig struct {
	SamplesPerPose int    // descriptor samples collected per pose (default 3)
	TickIntervalMS int    // delay between capture ticks
	PosePauseMS    int    // pause after completing a pose, lets the user reposition
	PosePlanPath   string // optional YAML file overriding the embedded pose plan
}

type CameraConfig struct {
	Device string // V4L2 device path (default /dev/video0)
	Dir    string // when set, frames are read from this directory instead of a camera
}

type GalleryConfig struct {
	Path          string // JSON gallery file (default facegate.v1.json)
	DatabaseURL   string // optional PostgreSQL URL, switches to the pgvector backend
	MaxOpenConns  int
	MaxIdleConns  int
	HNSWIndexPath string // optional path to persist the HNSW candidate index
}

type ShellConfig struct {
	CacheDir string // root directory for versioned cache buckets
	Version  string // cache bucket version tag (default v1)
	Upstream string // origin serving the app shell files
}

type WebConfig struct {
	Host string
	Port int
}

// Pose is one step of the guided enrollment plan.
type Pose struct {
	Label       string `yaml:"label"`
	Instruction string `yaml:"instruction"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Match: MatchConfig{
			DistanceThreshold: envFloat("FACEGATE_DISTANCE_THRESHOLD", constants.DefaultDistanceThreshold),
			Margin:            envFloat("FACEGATE_MATCH_MARGIN", constants.DefaultMatchMargin),
		},
		Detector: DetectorConfig{
			ModelURL:      os.Getenv("FACEGATE_MODEL_URL"),
			InputSize:     envInt("FACEGATE_DETECT_INPUT_SIZE", constants.DefaultDetectorInputSize),
			MinConfidence: envFloat("FACEGATE_MIN_CONFIDENCE", constants.DefaultMinConfidence),
			MinFaceWidth:  envInt("FACEGATE_MIN_FACE_WIDTH", constants.DefaultMinFaceWidth),
		},
		Enroll: EnrollConfig{
			SamplesPerPose: envInt("FACEGATE_SAMPLES_PER_POSE", constants.DefaultSamplesPerPose),
			TickIntervalMS: envInt("FACEGATE_TICK_INTERVAL_MS", constants.DefaultTickIntervalMS),
			PosePauseMS:    envInt("FACEGATE_POSE_PAUSE_MS", constants.DefaultPosePauseMS),
			PosePlanPath:   os.Getenv("FACEGATE_POSE_PLAN_PATH"),
		},
		Camera: CameraConfig{
			Device: envString("FACEGATE_CAMERA_DEVICE", "/dev/video0"),
			Dir:    os.Getenv("FACEGATE_CAMERA_DIR"),
		},
		Gallery: GalleryConfig{
			Path:          envString("FACEGATE_GALLERY_PATH", "facegate.v1.json"),
			DatabaseURL:   os.Getenv("FACEGATE_DATABASE_URL"),
			MaxOpenConns:  envInt("FACEGATE_DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("FACEGATE_DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("FACEGATE_HNSW_INDEX_PATH"),
		},
		Shell: ShellConfig{
			CacheDir: envString("FACEGATE_CACHE_DIR", ".facegate-cache"),
			Version:  envString("FACEGATE_SHELL_VERSION", "v1"),
			Upstream: os.Getenv("FACEGATE_SHELL_UPSTREAM"),
		},
		Web: WebConfig{
			Host: envString("FACEGATE_WEB_HOST", "0.0.0.0"),
			Port: envInt("FACEGATE_WEB_PORT", 8080),
		},
	}
}

// PosePlan returns the enrollment pose plan: the configured override file if
// set, the embedded default plan otherwise.
func (c *Config) PosePlan() ([]Pose, error) {
	data := posesYAML
	if c.Enroll.PosePlanPath != "" {
		b, err := os.ReadFile(c.Enroll.PosePlanPath)
		if err != nil {
			return nil, fmt.Errorf("reading pose plan: %w", err)
		}
		data = b
	}

	var plan struct {
		Poses []Pose `yaml:"poses"`
	}
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parsing pose plan: %w", err)
	}
	if len(plan.Poses) == 0 {
		return nil, fmt.Errorf("pose plan is empty")
	}
	return plan.Poses, nil
}
