package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dsisson/welkin/internal/genderize"
	"github.com/dsisson/welkin/internal/logger"
	"github.com/spf13/cobra"
)

var namesCmd = &cobra.Command{
	Use:   "names <name...>",
	Short: "Predict genders for first names with genderize.io",
	Long: `Look up first names with the genderize.io API, up to 10 per call.

The API key, if any, is read from the variable named by genderize.api_key_env.`,
	Args: cobra.RangeArgs(1, genderize.MaxNames),
	RunE: runNames,
}

var namesJSON bool

func init() {
	rootCmd.AddCommand(namesCmd)
	namesCmd.Flags().BoolVar(&namesJSON, "json", false, "print JSON")
}

func runNames(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := genderize.New(genderize.Options{
		BaseURL:           cfg.Genderize.GetBaseURL(),
		APIKey:            cfg.Genderize.GetAPIKey(),
		Timeout:           cfg.Genderize.Timeout(),
		RequestsPerSecond: cfg.Genderize.RequestsPerSecond,
	})
	logger.Debug().Strs("names", args).Str("base_url", cfg.Genderize.GetBaseURL()).Msg("predicting genders")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Genderize.Timeout())
	defer cancel()

	preds, err := client.Predict(ctx, args...)
	if err != nil {
		return predictError(err, cfg.Genderize.APIKeyEnv)
	}
	return writePredictions(os.Stdout, preds, namesJSON)
}

// predictError adds the API key hint to rate-limit failures.
func predictError(err error, keyEnv string) error {
	if genderize.IsRateLimited(err) {
		return fmt.Errorf("%w (set %s to use an API key)", err, keyEnv)
	}
	return err
}

func writePredictions(w io.Writer, preds []genderize.Prediction, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(preds)
	}
	for _, p := range preds {
		gender := p.Gender
		if gender == "" {
			gender = "unknown"
		}
		if _, err := fmt.Fprintf(w, "%-16s %-8s %.2f (%d samples)\n", p.Name, gender, p.Probability, p.Count); err != nil {
			return err
		}
	}
	return nil
}
