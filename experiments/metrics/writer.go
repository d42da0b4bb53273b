package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type TrialConfig struct {
	ID            int
	Env           string
	Agent         string
	Budget        int
	MaxNextStates int
	Seed          uint64
}

type EpisodeRecord struct {
	ID     int
	Config int // TrialConfig.ID
	EpisodeMetric
}

type StepRecord struct {
	Episode int // EpisodeRecord.ID
	StepMetric
}

type Writer struct {
	baseDir string
}

func NewWriter(root, name string) (*Writer, error) {
	// Create a subfolder named by current timestamp
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	baseDir := filepath.Join(root, name, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) WriteTrialConfigs(configs []TrialConfig) error {
	header := []string{"id", "env", "agent", "budget", "max_next_states", "seed"}
	rows := make([][]string, len(configs))
	for i, config := range configs {
		rows[i] = []string{
			strconv.Itoa(config.ID),
			config.Env,
			config.Agent,
			strconv.Itoa(config.Budget),
			strconv.Itoa(config.MaxNextStates),
			strconv.FormatUint(config.Seed, 10),
		}
	}
	return w.write("trial_configs.csv", "trial config", header, rows)
}

func (w *Writer) WriteEpisodeRecords(records []EpisodeRecord) error {
	header := []string{"id", "config", "trial", "start_time", "end_time", "duration", "steps", "return", "done"}
	rows := make([][]string, len(records))
	for i, record := range records {
		rows[i] = []string{
			strconv.Itoa(record.ID),
			strconv.Itoa(record.Config),
			strconv.Itoa(record.Trial),
			record.StartTime.Format(time.RFC3339),
			record.EndTime.Format(time.RFC3339),
			record.Duration.String(),
			strconv.Itoa(record.Steps),
			strconv.FormatFloat(record.Return, 'f', -1, 64),
			strconv.FormatBool(record.Done),
		}
	}
	return w.write("episode_records.csv", "episode record", header, rows)
}

func (w *Writer) WriteStepRecords(records []StepRecord) error {
	header := []string{"episode", "step", "action", "reward", "plan_id", "duration", "episodes", "horizon",
		"expansions", "propagations", "nodes", "is_graph_reset"}
	rows := make([][]string, len(records))
	for i, record := range records {
		rows[i] = []string{
			strconv.Itoa(record.Episode),
			strconv.Itoa(record.Step),
			strconv.Itoa(record.Action),
			strconv.FormatFloat(record.Reward, 'f', -1, 64),
			record.PlanID,
			record.Duration.String(),
			strconv.Itoa(record.Episodes),
			strconv.Itoa(record.Horizon),
			strconv.Itoa(record.Expansions),
			strconv.Itoa(record.Propagations),
			strconv.Itoa(record.Nodes),
			strconv.FormatBool(record.IsGraphReset),
		}
	}
	return w.write("step_records.csv", "step record", header, rows)
}

func (w *Writer) write(file, kind string, header []string, rows [][]string) error {
	// Create a file
	path := filepath.Join(w.baseDir, file)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %ss file: %w", kind, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)

	// Write header
	err = writer.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write %ss header: %w", kind, err)
	}

	// Write each row
	for _, row := range rows {
		err = writer.Write(row)
		if err != nil {
			return fmt.Errorf("failed to write %s row: %w", kind, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %ss: %w", kind, err)
	}
	return nil
}
