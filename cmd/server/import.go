package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/h4ks-com/crop-notifier/internal/database"
	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/repository"
	"github.com/h4ks-com/crop-notifier/internal/services"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type CropTypeImport struct {
	Name           string  `json:"name" yaml:"name"`
	Kind           string  `json:"kind" yaml:"kind"`
	GrowSeconds    int     `json:"grow_seconds" yaml:"grow_seconds"`
	HarvestSeconds int     `json:"harvest_seconds" yaml:"harvest_seconds"`
	SellPrice      float64 `json:"sell_price" yaml:"sell_price"`
	ImageURL       string  `json:"image_url" yaml:"image_url"`
	Description    string  `json:"description" yaml:"description"`
	Active         *bool   `json:"active" yaml:"active"`
}

func (c CropTypeImport) toModel() *models.CropType {
	return &models.CropType{
		Name:           strings.TrimSpace(c.Name),
		Kind:           strings.ToLower(strings.TrimSpace(c.Kind)),
		GrowSeconds:    c.GrowSeconds,
		HarvestSeconds: c.HarvestSeconds,
		SellPrice:      c.SellPrice,
		ImageURL:       c.ImageURL,
		Description:    c.Description,
		Active:         c.Active == nil || *c.Active,
	}
}

var (
	importFile string
	strictMode bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import crop types from a JSON or YAML file",
	Long: `Create or update crop catalog entries from a file. Entries are matched
by name. Existing plantings keep the ready time they were planted with.

Expected format (JSON shown, YAML uses the same keys):
[
  {"name": "Carrot", "kind": "crop", "harvest_seconds": 60, "sell_price": 0.02},
  {"name": "Apple Tree", "kind": "tree", "harvest_seconds": 7200, "sell_price": 1.5}
]

By default invalid entries are skipped. Use --strict to fail on the first one.`,
	Example: `  crop-notifier import -f crops.json
  crop-notifier import --file crops.yaml --strict`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport()
	},
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "JSON or YAML file to import (required)")
	importCmd.Flags().BoolVar(&strictMode, "strict", false, "Fail on any validation error")
	importCmd.MarkFlagRequired("file")
}

func parseCropTypes(path string, data []byte) ([]CropTypeImport, error) {
	var entries []CropTypeImport
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}
	return entries, nil
}

func runImport() error {
	if importFile == "" {
		return fmt.Errorf("file path is required")
	}

	data, err := os.ReadFile(importFile)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	entries, err := parseCropTypes(importFile, data)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	cropService := services.NewCropService(
		repository.NewCropRepository(db),
		repository.NewCropTypeRepository(db),
		repository.NewUserRepository(db),
		db,
	)

	logger.Info().Int("entries", len(entries)).Str("file", importFile).Msg("starting crop type import")

	imported, skipped := importCropTypes(entries, cropService, func(entry CropTypeImport, err error) {
		logger.Warn().Str("name", entry.Name).Err(err).Msg("skipped crop type")
	})
	if strictMode && skipped > 0 {
		return fmt.Errorf("import failed: %d invalid entries", skipped)
	}

	logger.Info().Int("imported", imported).Int("skipped", skipped).Msg("import complete")
	return nil
}

func importCropTypes(entries []CropTypeImport, cropService *services.CropService, onSkip func(CropTypeImport, error)) (imported, skipped int) {
	for _, entry := range entries {
		if err := cropService.SaveCropType(entry.toModel()); err != nil {
			onSkip(entry, err)
			skipped++
			if strictMode {
				return imported, skipped
			}
			continue
		}
		imported++
	}
	return imported, skipped
}
