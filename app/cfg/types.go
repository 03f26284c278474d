package cfg

type Cfg struct {
	// Storage configuration
	DBPath     string
	SourcesDir string

	// Application configuration
	Port              string
	WorkerCount       int
	SchedulerInterval int
	HTTPTimeout       int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
