// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"cloudeng.io/cmdutil"
	"cloudeng.io/cmdutil/subcmd"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
)

type CommonFlags struct {
	Catalog string `subcmd:"catalog,catalog.yaml,'path to the catalog file'"`
	Verbose bool   `subcmd:"verbose,false,verbose debug/trace information"`
}

type copyFlags struct {
	CommonFlags
	Hypertable  string `subcmd:"hypertable,,'name of the destination hypertable'"`
	OutputDir   string `subcmd:"output-dir,.,'directory chunk files are written to'"`
	BatchRows   int    `subcmd:"batch-rows,1000,'rows per compressed batch'"`
	Compression string `subcmd:"compression,zstd,'chunk file block compression: zstd or s2'"`
	ProgressBar bool   `subcmd:"progress,true,display a progress bar"`
}

type scanFlags struct {
	CommonFlags
	Chunk   int64 `subcmd:"chunk,,'relid of the chunk to scan'"`
	Merge   bool  `subcmd:"merge,false,'merge batches on the compression order-by'"`
	Reverse bool  `subcmd:"reverse,false,scan batches backwards"`
	Explain bool  `subcmd:"explain,false,'print the operator explain properties instead of rows'"`
}

type noFlags struct{}

var cmdSet *subcmd.CommandSet

func init() {
	copyCmd := subcmd.NewCommand("copy",
		subcmd.MustRegisterFlagStruct(&copyFlags{}, nil, nil),
		copyCSV, subcmd.ExactlyNumArguments(1))
	copyCmd.Document(`bulk-ingest a CSV file into a hypertable's chunks. The input may be local, on S3 or a URL.`)

	scanCmd := subcmd.NewCommand("scan",
		subcmd.MustRegisterFlagStruct(&scanFlags{}, nil, nil),
		scanChunk, subcmd.ExactlyNumArguments(1))
	scanCmd.Document(`decompress a chunk file and print its rows as CSV.`)

	inspectCmd := subcmd.NewCommand("inspect",
		subcmd.MustRegisterFlagStruct(&noFlags{}, nil, nil),
		inspect, subcmd.AtLeastNArguments(1))
	inspectCmd.Document(`print the batch layout of chunk files, the scan is intended purely for debugging purposes.`)

	cmdSet = subcmd.NewCommandSet(copyCmd, scanCmd, inspectCmd)
	cmdSet.Document(`ingest, decompress and inspect time-series chunk files. Files may be local, on S3 or a URL.`)

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func openFileOrURL(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if strings.HasPrefix(name, "http") {
		resp, err := http.Get(name)
		if err != nil {
			return nil, 0, nil, err
		}
		return resp.Body,
			resp.ContentLength,
			func(context.Context) error {
				resp.Body.Close()
				return nil
			},
			err
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

func createFile(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	if len(name) == 0 {
		return os.Stdout,
			func(context.Context) error {
				return nil
			},
			nil
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

func handleSignals(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	cmdutil.HandleSignals(cancel, os.Interrupt)
	return ctx, cancel
}

func chunkFileName(dir string, relid int64) string {
	return fmt.Sprintf("%s/chunk-%05d.tsbc", dir, relid)
}

func main() {
	cmdSet.MustDispatch(context.Background())
}
