package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"snapsync/internal/app"
	"snapsync/internal/backup"
	"snapsync/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a SnapApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Sync", "Restore").
func newApp(ctx context.Context, operation string) (*app.SnapApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewSnapApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts on stderr and reads a passphrase without echo.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("a terminal is required to read the passphrase")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "snapsync",
	Short:        "Keep local backup archives in sync with remote storage",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		localRoot, _ := cmd.Flags().GetString("local")
		if localRoot == "" {
			localRoot = defaults["local_dir"]
		}
		cfg.Sources = append(cfg.Sources, config.SourceConfig{
			Role: backup.SourceLocal,
			Type: "filesystem",
			Root: localRoot,
		})

		if bucket, _ := cmd.Flags().GetString("s3-bucket"); bucket != "" {
			prefix, _ := cmd.Flags().GetString("s3-prefix")
			region, _ := cmd.Flags().GetString("s3-region")
			cfg.Sources = append(cfg.Sources, config.SourceConfig{
				Role:     backup.SourceRemote,
				Type:     "s3",
				S3Bucket: bucket,
				S3Prefix: prefix,
				S3Region: region,
			})
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:    %s\n", cfg.HostID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
		fmt.Printf("Retention:  keep %d local, %d remote (0 keeps all)\n", cfg.Retention.KeepLocal, cfg.Retention.KeepRemote)
		for _, s := range cfg.Sources {
			switch s.Type {
			case "filesystem":
				fmt.Printf("Source %-6s filesystem %s\n", s.Role, s.Root)
			case "s3":
				fmt.Printf("Source %-6s s3://%s/%s\n", s.Role, s.S3Bucket, s.S3Prefix)
			default:
				fmt.Printf("Source %-6s %s\n", s.Role, s.Type)
			}
		}
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify every configured source is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ValidateSources")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateSources(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("All sources reachable.")
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "SetupKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupKeys(passphrase); err != nil {
			return err
		}
		fmt.Println("Encryption keys created.")
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List snapshots and where they are stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Status")
		if err != nil {
			return err
		}
		defer a.Close()

		views, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}

		if len(views) == 0 {
			fmt.Println("No snapshots found.")
			return nil
		}

		for _, v := range views {
			flags := ""
			for _, id := range v.Sources {
				if v.Retained[id] {
					flags += " [retained:" + id + "]"
				}
				if v.Purges[id] {
					flags += " [purge:" + id + "]"
				}
			}
			fmt.Printf("%-36s  %s  %10s  %-12s  %s%s\n",
				v.Slug,
				v.Date.Local().Format("2006-01-02 15:04"),
				v.Size,
				v.Status,
				v.Name,
				flags,
			)
			if v.Detail != "" {
				fmt.Printf("    %s\n", v.Detail)
			}
		}
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload pending snapshots and apply retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Sync")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Sync(cmd.Context())
		fmt.Printf("Uploaded %d snapshot(s), purged %d copy(ies)\n", result.Uploaded, result.Purged)
		if err != nil {
			return fmt.Errorf("sync incomplete: %w", err)
		}
		return nil
	},
}

// upload command
var uploadCmd = &cobra.Command{
	Use:   "upload SLUG",
	Short: "Upload one snapshot to the remote source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Upload")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Upload(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		fmt.Printf("Uploaded %s\n", args[0])
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore SLUG",
	Short: "Copy a snapshot back from the remote source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Restore")
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.EncryptionEnabled() {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		if err := a.Restore(cmd.Context(), args[0], passphrase); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored %s\n", args[0])
		return nil
	},
}

// retain command
var retainCmd = &cobra.Command{
	Use:   "retain SLUG",
	Short: "Exempt a snapshot copy from retention",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceID, _ := cmd.Flags().GetString("source")
		off, _ := cmd.Flags().GetBool("off")

		a, err := newApp(cmd.Context(), "SetRetained")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetRetained(cmd.Context(), args[0], sourceID, !off); err != nil {
			return err
		}
		if off {
			fmt.Printf("%s copy of %s no longer retained\n", sourceID, args[0])
		} else {
			fmt.Printf("%s copy of %s retained\n", sourceID, args[0])
		}
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete SLUG",
	Short: "Delete one copy of a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceID, _ := cmd.Flags().GetString("source")

		a, err := newApp(cmd.Context(), "Delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Delete(cmd.Context(), args[0], sourceID); err != nil {
			return err
		}
		fmt.Printf("Deleted %s copy of %s\n", sourceID, args[0])
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View transfer history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "History")
		if err != nil {
			return err
		}
		defer a.Close()

		transfers, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(transfers) == 0 {
			fmt.Println("No transfers recorded.")
			return nil
		}

		for _, t := range transfers {
			duration := ""
			if !t.FinishedAt.IsZero() {
				duration = t.FinishedAt.Sub(t.StartedAt).Truncate(time.Millisecond).String()
			}
			line := fmt.Sprintf("#%d  %-7s  %-36s  %s  %-7s  %s  %s",
				t.ID,
				t.Direction,
				t.Slug,
				t.StartedAt.Local().Format("2006-01-02 15:04:05"),
				t.Status,
				backup.HumanSize(t.Bytes),
				duration,
			)
			if t.Error != "" {
				line += "  " + t.Error
			}
			fmt.Println(strings.TrimRight(line, " "))
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configCheckCmd)
	configInitCmd.Flags().String("local", "", "Directory holding local archives (default: $SNAPSYNC_HOME/archives)")
	configInitCmd.Flags().String("s3-bucket", "", "S3 bucket for the remote source")
	configInitCmd.Flags().String("s3-prefix", "", "Key prefix inside the S3 bucket")
	configInitCmd.Flags().String("s3-region", "", "AWS region of the S3 bucket")

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(retainCmd)
	retainCmd.Flags().StringP("source", "s", backup.SourceLocal, "Source holding the copy (local or remote)")
	retainCmd.Flags().Bool("off", false, "Clear the retained flag instead of setting it")
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringP("source", "s", "", "Source holding the copy (local or remote)")
	deleteCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of transfers to show")
}
