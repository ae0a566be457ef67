package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"clinical-rag/internal/blobstore"
	"clinical-rag/internal/directory"
	"clinical-rag/internal/indexer"
)

func (c *cli) uploadCmd() *cobra.Command {
	var (
		collection string
		sourceType string
	)

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload one document and ingest it",
		Long: `Stores FILE in the blob store and ingests it synchronously.
Collections without the dr_ prefix are replaced by the default collection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := indexer.TargetCollection(collection, c.app.Config.DefaultCollection)
			path := args[0]
			key := indexer.UploadKey(target, filepath.Base(path))

			res, err := c.ingestFile(cmd, path, key, target, indexer.SourceType(sourceType))
			if err != nil {
				return err
			}
			cmd.Printf("Ingested %s into %s: %d chunks (%s)\n", filepath.Base(path), res.Collection, res.Chunks, key)
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "target collection (dr_ prefix required, otherwise the default collection)")
	cmd.Flags().StringVar(&sourceType, "source-type", string(indexer.SourceOther), "evidence kind")
	return cmd
}

func (c *cli) batchCmd() *cobra.Command {
	var (
		doctor     string
		protocol   string
		dir        string
		sourceType string
		skipErrors bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Upload every document in a directory as a clinician protocol",
		Long: `Scans --directory for .pdf, .docx, .md and .txt files and ingests each
into the collection dr_<doctor>_<protocol>.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if doctor == "" || protocol == "" || dir == "" {
				return errors.New("--doctor, --protocol and --directory are required")
			}
			if _, ok := c.app.Directory.Clinician(doctor); !ok {
				cmd.PrintErrf("warning: %s is not in the clinician registry\n", doctor)
			}

			files, err := indexer.ScanDir(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				cmd.Printf("No documents found in %s\n", dir)
				return nil
			}

			collection := indexer.ProtocolCollection(doctor, protocol)
			cmd.Printf("Uploading %d documents to %s\n", len(files), collection)

			var ok int
			for _, f := range files {
				key := indexer.ProtocolUploadKey(doctor, protocol, f.RelPath)
				res, err := c.ingestFile(cmd, f.AbsPath, key, collection, indexer.SourceType(sourceType))
				if err != nil {
					cmd.Printf("  FAIL %s: %v\n", f.RelPath, err)
					if !skipErrors {
						return fmt.Errorf("failed to ingest %s: %w", f.RelPath, err)
					}
					continue
				}
				ok++
				cmd.Printf("  OK   %s (%d chunks)\n", f.RelPath, res.Chunks)
			}
			cmd.Printf("Uploaded %d/%d documents to %s\n", ok, len(files), collection)
			return nil
		},
	}
	cmd.Flags().StringVar(&doctor, "doctor", "", "clinician id, e.g. joshua_dines")
	cmd.Flags().StringVar(&protocol, "protocol", "", "protocol name, e.g. ucl")
	cmd.Flags().StringVar(&dir, "directory", "", "directory to scan")
	cmd.Flags().StringVar(&sourceType, "source-type", string(indexer.SourceDoctorProtocol), "evidence kind")
	cmd.Flags().BoolVar(&skipErrors, "skip-errors", false, "continue after a failed document")
	return cmd
}

// ingestFile stores a local file under key and ingests it into collection.
func (c *cli) ingestFile(cmd *cobra.Command, path, key, collection string, sourceType indexer.SourceType) (*indexer.Result, error) {
	ctx := cmd.Context()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	filename := filepath.Base(path)
	if err := c.app.Blobs.Put(ctx, key, data, map[string]string{blobstore.MetaOriginalFilename: filename}); err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	if directory.IsGeneral(collection) && sourceType == indexer.SourceDoctorProtocol {
		cmd.PrintErrf("warning: %s is a general collection but the source type is %s\n", collection, sourceType)
	}
	return c.app.Pipeline.Ingest(ctx, indexer.Request{
		DocumentID: key,
		Data:       data,
		SourceType: sourceType,
		Collection: collection,
		Filename:   filename,
	})
}
