// Command blendinfo inspects .blend scene containers without Blender.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/meigma/blend"
	blendhttp "github.com/meigma/blend/http"
)

func main() {
	app := &cli.App{
		Name:  "blendinfo",
		Usage: "inspect .blend scene containers without Blender",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log decode events",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "read over HTTP range requests instead of a local path",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "structs",
				Usage:     "list the structure names the file's schema defines",
				ArgsUsage: "[file]",
				Action:    cmdStructs,
			},
			{
				Name:      "blocks",
				Usage:     "list the file's block descriptors",
				ArgsUsage: "[file]",
				Action:    cmdBlocks,
			},
			{
				Name:      "describe",
				Usage:     "print the field layout of a structure",
				ArgsUsage: "[file] <structure>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "depth",
						Usage: "levels of embedded structures to expand",
						Value: 3,
					},
				},
				Action: cmdDescribe,
			},
			{
				Name:      "find",
				Usage:     "find an object by id name and dump its fields",
				ArgsUsage: "[file] <structure> <name>",
				Action:    cmdFind,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// openFile opens the positional path, or the --url flag over HTTP.
// Remaining positional arguments follow the path.
func openFile(c *cli.Context) (*blend.File, []string, error) {
	args := c.Args().Slice()

	var opts []blend.Option
	if c.Bool("verbose") {
		logrus.SetLevel(logrus.DebugLevel)
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		opts = append(opts, blend.WithLogger(logger))
	}

	if url := c.String("url"); url != "" {
		src, err := blendhttp.NewSource(url)
		if err != nil {
			return nil, nil, err
		}
		f, err := blend.New(src, opts...)
		return f, args, err
	}

	if len(args) == 0 {
		return nil, nil, cli.Exit("missing file argument (or --url)", 2)
	}
	f, err := blend.Open(args[0], opts...)
	return f, args[1:], err
}

func cmdStructs(c *cli.Context) error {
	f, _, err := openFile(c)
	if err != nil {
		return err
	}
	defer f.Close()

	names, err := f.ListStructures()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func cmdBlocks(c *cli.Context) error {
	f, _, err := openFile(c)
	if err != nil {
		return err
	}
	defer f.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tSIZE\tADDR\tSDNA\tCOUNT\tOFFSET")
	for _, b := range f.Blocks() {
		fmt.Fprintf(w, "%s\t%d\t%#x\t%d\t%d\t%d\n", b.Code, b.Size, b.Addr, b.SDNA, b.Count, b.Offset)
	}
	return w.Flush()
}

func cmdDescribe(c *cli.Context) error {
	f, args, err := openFile(c)
	if err != nil {
		return err
	}
	defer f.Close()

	if len(args) != 1 {
		return cli.Exit("describe needs exactly one structure name", 2)
	}
	text, err := f.DescribeDepth(args[0], c.Int("depth"))
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

func cmdFind(c *cli.Context) error {
	f, args, err := openFile(c)
	if err != nil {
		return err
	}
	defer f.Close()

	if len(args) != 2 {
		return cli.Exit("find needs a structure name and an id name", 2)
	}
	factory, err := f.ForStructure(args[0])
	if err != nil {
		return err
	}
	obj, err := factory.FindByName(args[1])
	if err != nil {
		return err
	}

	values := map[string]any{}
	for _, name := range obj.FieldNames() {
		v, err := obj.Get(name)
		if err != nil {
			logrus.WithError(err).Warnf("decode field %q", name)
			continue
		}
		values[name] = renderValue(v)
	}
	spew.Dump(values)
	return nil
}

// renderValue flattens sub-objects to their structure names so the
// dump stays readable.
func renderValue(v any) any {
	switch t := v.(type) {
	case *blend.Object:
		return fmt.Sprintf("<%s>", t.Struct())
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = renderValue(e)
		}
		return out
	default:
		return v
	}
}
