package config

const (
	defaultLogDir           = "~/.local/share/featprep/logs"
	defaultDatasetVar       = "DATAPATH"
	defaultOutputVar        = "SAVEPATH"
	defaultLogFileVar       = "FEATPREP_LOGFILE"
	defaultDatasetSuffix    = "algonauts2025/download/algonauts_2025.competitors"
	defaultCacheSuffix      = "cache/algonauts-2025"
	defaultPythonBinary     = "python3"
	defaultProbeTimeout     = 30
	defaultPrimaryModel     = "en_core_web_lg"
	defaultFallbackModel    = "en_core_web_sm"
	defaultModelCacheDir    = "~/.cache/huggingface/hub"
	defaultModelCachePrefix = "models--"
	defaultFFmpegBinary     = "ffmpeg"
	defaultLogLevel         = "info"
)

var (
	defaultAdvisoryVars = []string{"SCRATCH", "HF_HOME", "TRANSFORMERS_CACHE"}
	defaultSplits       = []string{"train", "val", "test"}
	defaultModules      = []string{
		"h5py", "Levenshtein", "spacy", "moviepy", "transformers",
		"torch", "tqdm", "exca", "nibabel", "julius",
	}
	defaultExperimentCommand = []string{"python3", "-m", "algonauts2025.extract"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Environment: Environment{
			DatasetVar:   defaultDatasetVar,
			OutputVar:    defaultOutputVar,
			AdvisoryVars: append([]string(nil), defaultAdvisoryVars...),
			LogFileVar:   defaultLogFileVar,
		},
		Data: Data{
			DatasetSuffix: defaultDatasetSuffix,
			CacheSuffix:   defaultCacheSuffix,
			Splits:        append([]string(nil), defaultSplits...),
		},
		Python: Python{
			Binary:              defaultPythonBinary,
			Modules:             append([]string(nil), defaultModules...),
			ProbeTimeoutSeconds: defaultProbeTimeout,
		},
		LanguageModel: LanguageModel{
			Primary:  defaultPrimaryModel,
			Fallback: defaultFallbackModel,
			Selected: defaultPrimaryModel,
		},
		ModelCache: ModelCache{
			Prefix: defaultModelCachePrefix,
		},
		Tools: Tools{
			FFmpeg: defaultFFmpegBinary,
		},
		Experiment: Experiment{
			Command: append([]string(nil), defaultExperimentCommand...),
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
