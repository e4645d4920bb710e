package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts/elevenlabs"
)

var (
	voicesRefresh  bool
	voicesLanguage string
	voicesTags     []string
	voicesGender   string
	voicesJSON     bool
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List voice profiles",
	RunE:  runVoices,
}

func init() {
	voicesCmd.Flags().BoolVar(&voicesRefresh, "refresh", false, "fetch voices from ElevenLabs")
	voicesCmd.Flags().StringVarP(&voicesLanguage, "language", "l", "", "filter by language")
	voicesCmd.Flags().StringSliceVarP(&voicesTags, "tag", "t", nil, "filter by tags (any match)")
	voicesCmd.Flags().StringVar(&voicesGender, "gender", "", "filter by gender")
	voicesCmd.Flags().BoolVar(&voicesJSON, "json", false, "print JSON")
	rootCmd.AddCommand(voicesCmd)
}

func runVoices(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	registry := cfg.Registry()

	if voicesRefresh {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		client := elevenlabs.NewClient(elevenlabs.Config{
			APIKey:  cfg.ElevenLabs.APIKey,
			BaseURL: cfg.ElevenLabs.BaseURL,
			Timeout: cfg.ElevenLabs.Timeout,
		})
		profiles, err := client.Voices(ctx)
		if err != nil {
			return fmt.Errorf("refresh voices: %w", err)
		}
		registry.Load(profiles, false)
	}

	voices := registry.All()
	switch {
	case len(voicesTags) > 0:
		voices = registry.FindByTags(voicesTags...)
	case voicesGender != "":
		voices = registry.FindByGender(voicesGender)
	}
	if voicesLanguage != "" {
		voices = filterLanguage(voices, voicesLanguage)
	}

	if voicesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(voices)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLANG\tGENDER\tMODEL\tTAGS\tDEFAULT")
	for _, v := range voices {
		def := ""
		if v.Default {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.Name, v.Language, v.Gender, v.ModelID, strings.Join(v.Tags, ","), def)
	}
	return w.Flush()
}

func filterLanguage(voices []tts.VoiceProfile, language string) []tts.VoiceProfile {
	var out []tts.VoiceProfile
	for _, v := range voices {
		if v.Language == language {
			out = append(out, v)
		}
	}
	return out
}
