// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/HaulWorks/haulfs/pkg/utils"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "haulfs",
	Short: "HaulFS - resumable bulk object transfer service",
	Long: `HaulFS moves large data objects into S3 or Azure blob storage through
presigned multipart uploads. All upload bookkeeping lives inside the blob
store itself, so transfers survive crashes of both client and server and
resume from the last finished part.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&utils.ConfigurationFileDirectory, "config_dir", ".", "Directory for configuration files")
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
