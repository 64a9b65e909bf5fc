package cli

import (
	"fmt"

	"maildigest/internal/config"
	"maildigest/internal/secrets"

	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication and config setup",
	}
	cmd.AddCommand(newAuthLoginCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		imapHost     string
		imapPort     int
		imapTLS      bool
		imapStartTLS bool
		imapInsecure bool
		mailbox      string

		smtpHost     string
		smtpPort     int
		smtpTLS      bool
		smtpStartTLS bool
		smtpInsecure bool

		username   string
		password   string
		useKeyring bool

		timezone string
		hour     int
		minute   int

		summarizerURL   string
		summarizerModel string
		summarizerKey   string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store mailbox credentials, schedule and summarizer configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("imap-host") {
				cfg.IMAP.Host = imapHost
			}
			if flags.Changed("imap-port") {
				cfg.IMAP.Port = imapPort
			}
			if flags.Changed("imap-tls") {
				cfg.IMAP.TLS = imapTLS
			}
			if flags.Changed("imap-starttls") {
				cfg.IMAP.StartTLS = imapStartTLS
			}
			if flags.Changed("imap-insecure") {
				cfg.IMAP.InsecureSkipVerify = imapInsecure
			}
			if flags.Changed("mailbox") {
				cfg.IMAP.Mailbox = mailbox
			}

			if flags.Changed("smtp-host") {
				cfg.SMTP.Host = smtpHost
			}
			if flags.Changed("smtp-port") {
				cfg.SMTP.Port = smtpPort
			}
			if flags.Changed("smtp-tls") {
				cfg.SMTP.TLS = smtpTLS
			}
			if flags.Changed("smtp-starttls") {
				cfg.SMTP.StartTLS = smtpStartTLS
			}
			if flags.Changed("smtp-insecure") {
				cfg.SMTP.InsecureSkipVerify = smtpInsecure
			}

			if flags.Changed("username") {
				cfg.Auth.Username = username
			}
			if flags.Changed("password") {
				cfg.Auth.Password = password
			} else if useKeyring || cfg.Auth.Password == "" {
				if stdinIsTerminal() {
					pw, err := promptSecret(cmd.OutOrStdout(), "Password")
					if err != nil {
						return err
					}
					cfg.Auth.Password = pw
				}
			}

			if flags.Changed("timezone") {
				cfg.Schedule.Timezone = timezone
			}
			if flags.Changed("hour") {
				cfg.Schedule.Hour = hour
			}
			if flags.Changed("minute") {
				cfg.Schedule.Minute = minute
			}

			if flags.Changed("summarizer-url") {
				cfg.Summarizer.BaseURL = summarizerURL
			}
			if flags.Changed("summarizer-model") {
				cfg.Summarizer.Model = summarizerModel
			}
			if flags.Changed("summarizer-api-key") {
				cfg.Summarizer.APIKey = summarizerKey
			}

			if err := config.Validate(cfg); err != nil {
				return err
			}

			if useKeyring {
				if err := secrets.SetPassword(cfg.Auth.Username, cfg.Auth.Password); err != nil {
					return err
				}
				cfg.Auth.Password = ""
				if cfg.Summarizer.APIKey != "" {
					if err := secrets.SetAPIKey(cfg.Summarizer.BaseURL, cfg.Summarizer.APIKey); err != nil {
						return err
					}
					cfg.Summarizer.APIKey = ""
				}
			}

			path, err := config.Save(cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", path)
			if useKeyring {
				fmt.Fprintln(cmd.OutOrStdout(), "Secrets stored in keyring.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&imapHost, "imap-host", "", "IMAP host")
	cmd.Flags().IntVar(&imapPort, "imap-port", 0, "IMAP port")
	cmd.Flags().BoolVar(&imapTLS, "imap-tls", false, "Use IMAP TLS")
	cmd.Flags().BoolVar(&imapStartTLS, "imap-starttls", false, "Use IMAP STARTTLS")
	cmd.Flags().BoolVar(&imapInsecure, "imap-insecure", false, "Skip IMAP TLS verification")
	cmd.Flags().StringVar(&mailbox, "mailbox", "", "Mailbox to digest")

	cmd.Flags().StringVar(&smtpHost, "smtp-host", "", "SMTP host")
	cmd.Flags().IntVar(&smtpPort, "smtp-port", 0, "SMTP port")
	cmd.Flags().BoolVar(&smtpTLS, "smtp-tls", false, "Use SMTP implicit TLS")
	cmd.Flags().BoolVar(&smtpStartTLS, "smtp-starttls", false, "Use SMTP STARTTLS")
	cmd.Flags().BoolVar(&smtpInsecure, "smtp-insecure", false, "Skip SMTP TLS verification")

	cmd.Flags().StringVar(&username, "username", "", "Account address; also receives the digest")
	cmd.Flags().StringVar(&password, "password", "", "Password or app password (prompted when omitted on a terminal)")
	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "Store password and API key in the system keyring instead of the config file")

	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA time zone for \"today\" and the daily run")
	cmd.Flags().IntVar(&hour, "hour", 0, "Hour of the daily run (0-23)")
	cmd.Flags().IntVar(&minute, "minute", 0, "Minute of the daily run (0-59)")

	cmd.Flags().StringVar(&summarizerURL, "summarizer-url", "", "OpenAI-compatible API base URL")
	cmd.Flags().StringVar(&summarizerModel, "summarizer-model", "", "Summarization model name")
	cmd.Flags().StringVar(&summarizerKey, "summarizer-api-key", "", "Summarization API key")

	return cmd
}
