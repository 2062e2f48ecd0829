package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-presign/internal/logging"
	"github.com/tendant/simple-presign/pkg/presign"
	"github.com/tendant/simple-presign/pkg/presign/client"
	"github.com/tendant/simple-presign/pkg/presign/config"
)

// NewRootCommand creates the presignctl command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "presignctl",
		Short: "Issue presigned storage credentials from the shell",
		Long: `presignctl issues the same presigned upload URLs, POST policies and
download URLs as the HTTP server, using the same environment configuration
(BUCKET_NAME, STORAGE_BACKEND, AWS_REGION, ...).`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("bucket", "", "bucket name (overrides BUCKET_NAME)")
	rootCmd.PersistentFlags().String("backend", "", "signing backend: s3, minio or local (overrides STORAGE_BACKEND)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log diagnostic detail to stderr")

	rootCmd.AddCommand(NewUploadURLCommand())
	rootCmd.AddCommand(NewUploadPostCommand())
	rootCmd.AddCommand(NewDownloadURLCommand())
	rootCmd.AddCommand(NewUploadCommand())

	return rootCmd
}

// NewUploadURLCommand creates the upload-url command
func NewUploadURLCommand() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "upload-url <file-name>",
		Short: "Issue a presigned PUT URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromFlags(cmd)
			if err != nil {
				return err
			}

			result, err := svc.IssueUploadURL(cmd.Context(), presign.UploadRequest{
				FileName:    args[0],
				ContentType: contentType,
			})
			if err != nil {
				return fmt.Errorf("upload-url failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "content type bound into the signature (default DEFAULT_CONTENT_TYPE)")
	return cmd
}

// NewUploadPostCommand creates the upload-post command
func NewUploadPostCommand() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "upload-post <file-name>",
		Short: "Issue a presigned POST policy for browser form uploads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromFlags(cmd)
			if err != nil {
				return err
			}

			result, err := svc.IssueUploadPost(cmd.Context(), presign.UploadRequest{
				FileName:    args[0],
				ContentType: contentType,
			})
			if err != nil {
				return fmt.Errorf("upload-post failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "content type the policy requires (default DEFAULT_CONTENT_TYPE)")
	return cmd
}

// NewDownloadURLCommand creates the download-url command
func NewDownloadURLCommand() *cobra.Command {
	var encoded bool

	cmd := &cobra.Command{
		Use:   "download-url <object-key>",
		Short: "Issue a presigned GET URL",
		Long: `Issue a presigned GET URL for an object key. The key is taken literally
unless --encoded is set, in which case it is percent-decoded first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := serviceFromFlags(cmd)
			if err != nil {
				return err
			}

			rawKey := args[0]
			if !encoded {
				rawKey = escapeKey(rawKey)
			}

			result, err := svc.IssueDownloadURL(cmd.Context(), rawKey)
			if err != nil {
				return fmt.Errorf("download-url failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"downloadUrl": result.URL,
				"objectKey":   result.ObjectKey,
			})
		},
	}

	cmd.Flags().BoolVar(&encoded, "encoded", false, "the object key argument is percent-encoded")
	return cmd
}

// NewUploadCommand creates the upload command, which goes through a running
// server instead of signing locally
func NewUploadCommand() *cobra.Command {
	var (
		server      string
		name        string
		contentType string
	)

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file through a presign server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()

			if name == "" {
				name = filepath.Base(path)
			}
			if contentType == "" {
				contentType = detectContentType(path)
			}
			if contentType == "" {
				contentType = presign.DefaultContentType
			}

			key, err := client.New(server).Upload(cmd.Context(), name, contentType, f)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"objectKey":   key,
				"contentType": contentType,
			})
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "presign server base URL")
	cmd.Flags().StringVar(&name, "name", "", "file name sent to the server (default: base name of path)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type (default: guessed from extension)")
	return cmd
}

// detectContentType guesses from the extension; empty lets the server default apply
func detectContentType(path string) string {
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct
	}
	return mediaType
}

func serviceFromFlags(cmd *cobra.Command) (*presign.Service, error) {
	opts := []config.Option{config.WithEnv()}

	if bucket, _ := cmd.Flags().GetString("bucket"); bucket != "" {
		opts = append(opts, config.WithBucket(bucket))
	}
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		opts = append(opts, config.WithBackend(backend))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := "error"
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.Environment, level)

	return cfg.BuildService(cmd.Context(), presign.WithLogger(logger))
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("Failed to encode output", "err", err)
		return err
	}
	return nil
}
