/*
Copyright (C) 2025  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package coredb

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/ulikunitz/xz"
)

// S3Archiver uploads an xz-compressed tarball of $BINARY_DIR's three files
// (objects, the index log, clean) to an S3-compatible bucket after every
// flush that leaves the database clean, for off-box disaster recovery.
type S3Archiver struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	Bucket          string
	Prefix          string
	ForcePathStyle  bool

	client *s3.Client
}

func (a *S3Archiver) ensureOpen() error {
	if a.client != nil {
		return nil
	}

	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if a.Region != "" {
		opts = append(opts, config.WithRegion(a.Region))
	}
	if a.AccessKeyID != "" && a.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.AccessKeyID, a.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("S3Archiver: loading AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if a.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(a.Endpoint) })
	}
	if a.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	a.client = s3.NewFromConfig(cfg, s3Opts...)
	return nil
}

// Archive tars up dir's objects/index.log/clean files, compresses the
// tarball with xz, and uploads it under a UUID-suffixed key so concurrent
// snapshots never collide.
func (a *S3Archiver) Archive(ctx context.Context, dir string) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}

	var tarbuf bytes.Buffer
	tw := tar.NewWriter(&tarbuf)
	for _, name := range []string{objectsFileName, indexFileName, cleanMarkerName} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("S3Archiver: reading %s: %w", name, err)
		}
		hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("S3Archiver: writing tar header for %s: %w", name, err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("S3Archiver: writing tar body for %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("S3Archiver: closing tar: %w", err)
	}

	var xzbuf bytes.Buffer
	xw, err := xz.NewWriter(&xzbuf)
	if err != nil {
		return fmt.Errorf("S3Archiver: opening xz writer: %w", err)
	}
	if _, err := io.Copy(xw, &tarbuf); err != nil {
		return fmt.Errorf("S3Archiver: compressing snapshot: %w", err)
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("S3Archiver: closing xz writer: %w", err)
	}

	pfx := strings.TrimSuffix(a.Prefix, "/")
	key := fmt.Sprintf("%s/%s.tar.xz", pfx, uuid.New().String())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(xzbuf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("S3Archiver: uploading snapshot: %w", err)
	}
	return nil
}
