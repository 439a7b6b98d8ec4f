// Command annbuild constructs the persisted nearest-neighbor index from a
// vocabulary file. Building over a million-word production vocabulary takes
// a while; the artifact is written once and reused by every quantized
// instance serving that vocabulary.
//
// Usage:
//
//	annbuild --vocabulary words.dat --output words.idx
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/openbovw/bovw/ann"
	"github.com/openbovw/bovw/vocabulary"
)

func main() {
	vocabPath := pflag.String("vocabulary", "", "Path to the visual-word vocabulary file")
	output := pflag.String("output", "", "Destination for the index artifact")
	size := pflag.Int("vocabulary-size", 0, "Expected vocabulary word count (0 = skip check)")
	degree := pflag.Int("degree", ann.DefaultBuildOptions.Degree, "Neighbors per graph node")
	efConstruction := pflag.Int("ef-construction", ann.DefaultBuildOptions.EFConstruction, "Candidate list size during construction")
	pflag.Parse()

	if err := run(*vocabPath, *output, *size, *degree, *efConstruction); err != nil {
		fmt.Fprintln(os.Stderr, "annbuild:", err)
		os.Exit(1)
	}
}

func run(vocabPath, output string, size, degree, efConstruction int) error {
	if vocabPath == "" || output == "" {
		return fmt.Errorf("both --vocabulary and --output are required")
	}

	start := time.Now()

	vocab, err := vocabulary.Load(vocabPath)
	if err != nil {
		return err
	}
	if size > 0 {
		if err := vocab.CheckCount(size); err != nil {
			return err
		}
	}
	fmt.Printf("loaded %d words in %s\n", vocab.Count(), time.Since(start).Round(time.Millisecond))

	buildStart := time.Now()
	g, err := ann.Build(vocab, func(o *ann.BuildOptions) {
		o.Degree = degree
		o.EFConstruction = efConstruction
	})
	if err != nil {
		return err
	}
	fmt.Printf("built graph in %s\n", time.Since(buildStart).Round(time.Millisecond))

	if err := g.SaveToFile(output); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", output)
	return nil
}
