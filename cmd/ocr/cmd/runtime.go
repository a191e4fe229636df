package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/lipi/internal/onnx"
	"github.com/spf13/cobra"
)

// runtimeCmd checks the ONNX Runtime installation used by the onnx backend.
var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Check the ONNX Runtime setup",
	Long: `Locate and load the ONNX Runtime shared library used by the onnx
recognition backend. Set recognizer.library_path or ONNXRUNTIME_LIB
when it is installed outside the default search paths.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		gpu := cfg.Recognizer.GPU.UseGPU

		path := cfg.Recognizer.LibraryPath
		if path == "" {
			if path, err = onnx.FindLibrary(gpu); err != nil {
				_, _ = fmt.Fprintln(out, "Searched:")
				for _, p := range onnx.LibrarySearchPaths(gpu) {
					_, _ = fmt.Fprintln(out, "  "+p)
				}
				return err
			}
		}
		_, _ = fmt.Fprintf(out, "Library: %s\n", path)
		if err := onnx.InitRuntime(path, gpu); err != nil {
			return fmt.Errorf("ONNX Runtime failed to load: %w", err)
		}
		_, _ = fmt.Fprintln(out, "ONNX Runtime is ready.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runtimeCmd)
}
