// Copyright 2019 Featix Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// This binary builds range indexes for genomic feature files (BED, WIG,
// FASTA) and converts VCF files into search-index documents.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/profile"

	"github.com/genomicsio/featix/internal/bed"
	"github.com/genomicsio/featix/internal/docindex"
	"github.com/genomicsio/featix/internal/fasta"
	"github.com/genomicsio/featix/internal/genomics"
	"github.com/genomicsio/featix/internal/session"
	"github.com/genomicsio/featix/internal/textio"
	"github.com/genomicsio/featix/internal/vcf"
	"github.com/genomicsio/featix/internal/wig"
)

var (
	format = flag.String("format", "", "input format (bed, wig, fasta or vcf), detected from the file name if empty")
	outDir = flag.String("out", ".", "directory the index is created under")

	reference = flag.String("reference", "", "committed sequence index directory used to verify contig names")

	sinkPath = flag.String("sink", "", "for VCF input, file the documents are written to (default stdout)")
	from     = flag.Int64("from", 0, "for VCF input, resume after this record ordinal")
	batch    = flag.Int("batch", docindex.DefaultBatchSize, "for VCF input, documents per batch")

	verbose    = flag.Bool("v", false, "enable debug logging")
	profileCPU = flag.Bool("profile", false, "write a CPU profile to the current directory")
)

func main() {
	flag.Parse()

	logger := log.With(
		log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr)),
		"ts", log.DefaultTimestampUTC,
	)
	if !*verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: featix-indexer [flags] file...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *profileCPU {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}

	if err := run(logger, flag.Args()); err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}

func run(logger log.Logger, files []string) error {
	kind := *format
	if kind == "" {
		kind = detectFormat(files[0])
		if kind == "" {
			return fmt.Errorf("cannot detect the format of %q, use -format", files[0])
		}
	}

	if kind == "vcf" {
		if len(files) != 1 {
			return fmt.Errorf("vcf input takes exactly one file, got %d", len(files))
		}
		return convertVariants(logger, files[0])
	}
	if kind != "fasta" && len(files) != 1 {
		return fmt.Errorf("%s input takes exactly one file, got %d", kind, len(files))
	}

	sess, err := session.New(*outDir, strings.TrimSuffix(filepath.Base(files[0]), ".gz")+".index")
	if err != nil {
		return fmt.Errorf("creating index directory: %v", err)
	}
	level.Info(logger).Log("msg", "indexing", "format", kind, "dir", sess.Dir())

	contigs, version, err := buildIndex(kind, sess, logger, files)
	if err != nil {
		if derr := sess.Discard(); derr != nil {
			level.Warn(logger).Log("msg", "discarding failed index", "err", derr)
		}
		return err
	}
	if err := sess.Commit(version); err != nil {
		return err
	}
	warnDisjointContigs(logger, contigs)

	level.Info(logger).Log("msg", "done", "dir", sess.Dir(), "contigs", len(contigs))
	return nil
}

func buildIndex(kind string, sess *session.Session, logger log.Logger, files []string) ([]string, string, error) {
	switch kind {
	case "fasta":
		srcs := make([]io.Reader, 0, len(files))
		for _, name := range files {
			src, err := textio.Open(name)
			if err != nil {
				return nil, "", err
			}
			defer src.Close()
			srcs = append(srcs, src)
		}
		contigs, err := fasta.Index(sess, srcs...)
		// The dumper reports raw sequence names; the reference cross-check
		// compares normalized ones.
		for i, contig := range contigs {
			contigs[i] = genomics.NormalizeContig(contig)
		}
		return contigs, fasta.FormatVersion, err
	case "bed":
		src, err := textio.Open(files[0])
		if err != nil {
			return nil, "", err
		}
		defer src.Close()
		if err := bed.Index(src, sess, logger); err != nil {
			return nil, "", err
		}
		contigs, err := indexedContigs(sess.Path(bed.IndexDir), true)
		return contigs, bed.FormatVersion, err
	case "wig":
		src, err := textio.Open(files[0])
		if err != nil {
			return nil, "", err
		}
		defer src.Close()
		if err := wig.Index(src, sess, logger); err != nil {
			return nil, "", err
		}
		contigs, err := indexedContigs(sess.Path(wig.IndexDir), false)
		return contigs, wig.FormatVersion, err
	default:
		return nil, "", fmt.Errorf("unsupported format %q", kind)
	}
}

func convertVariants(logger log.Logger, name string) error {
	src, err := textio.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()

	out := io.Writer(os.Stdout)
	if *sinkPath != "" {
		file, err := os.Create(*sinkPath)
		if err != nil {
			return fmt.Errorf("creating sink file: %v", err)
		}
		defer file.Close()
		out = file
	}

	ix := docindex.NewIndexer(docindex.WriterSink(out), docindex.Config{
		BatchSize: *batch,
		Logger:    logger,
		Progress: func(line int64) {
			level.Info(logger).Log("msg", "progress", "record", line)
		},
	})
	contigs, err := vcf.Index(context.Background(), src, ix, *from, logger)
	if err != nil {
		return err
	}
	warnDisjointContigs(logger, contigs)

	level.Info(logger).Log("msg", "done", "version", vcf.IndexingVersion, "contigs", len(contigs))
	return nil
}

// indexedContigs lists the contigs an index directory covers.  BED index
// files carry a track ordinal before the contig name.
func indexedContigs(dir string, ordinal bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing index files: %v", err)
	}
	seen := make(map[string]bool)
	var contigs []string
	for _, entry := range entries {
		name := entry.Name()
		if ordinal {
			name = strings.TrimSuffix(name, ".index")
			if _, rest, ok := strings.Cut(name, "."); ok {
				name = rest
			}
		}
		if !seen[name] {
			seen[name] = true
			contigs = append(contigs, name)
		}
	}
	return contigs, nil
}

// warnDisjointContigs flags an indexed file whose contig names share
// nothing with the reference sequence, which usually means the wrong
// genome build was used.
func warnDisjointContigs(logger log.Logger, contigs []string) {
	if *reference == "" || len(contigs) == 0 {
		return
	}
	if err := session.Check(*reference, fasta.FormatVersion); err != nil {
		level.Warn(logger).Log("msg", "cannot use reference index", "err", err)
		return
	}
	file, err := os.Open(filepath.Join(*reference, fasta.DirectoryFile))
	if err != nil {
		level.Warn(logger).Log("msg", "cannot read reference directory", "err", err)
		return
	}
	defer file.Close()
	entries, err := fasta.ReadDirectory(file)
	if err != nil {
		level.Warn(logger).Log("msg", "cannot read reference directory", "err", err)
		return
	}

	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = genomics.NormalizeContig(entry.Name)
	}
	if !genomics.HaveCommonContig(contigs, names) {
		level.Warn(logger).Log(
			"msg", "no common contigs with the reference sequence",
			"indexed", genomics.SummarizeContigs(contigs, 5),
			"reference", genomics.SummarizeContigs(names, 5),
		)
	}
}

func detectFormat(name string) string {
	name = strings.TrimSuffix(name, ".gz")
	switch strings.ToLower(filepath.Ext(name)) {
	case ".bed":
		return "bed"
	case ".wig":
		return "wig"
	case ".fa", ".fasta", ".fna":
		return "fasta"
	case ".vcf":
		return "vcf"
	}
	return ""
}
