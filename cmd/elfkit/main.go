package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/wippyai/elfkit/elfyaml"
	"github.com/wippyai/elfkit/errors"
	"github.com/wippyai/elfkit/object"
	"github.com/wippyai/elfkit/rawimage"
)

type config struct {
	verbose bool
	input   string
	output  string
	yaml    bool
}

// app carries the process environment so commands can run against an
// in-memory filesystem and buffers.
type app struct {
	fs         afero.Fs
	stdout     io.Writer
	stderr     io.Writer
	isTerminal func(w io.Writer) bool
	browse     func(name string, l *object.Layout) error
}

func main() {
	a := &app{
		fs:         afero.NewOsFs(),
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		isTerminal: isTerminal,
		browse:     runInteractive,
	}
	os.Exit(a.run(os.Args[1:]))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) run(args []string) int {
	var cfg config
	k := kingpin.New("elfkit", "Convert ELF objects to and from YAML and extract raw memory images.").
		UsageWriter(a.stdout).
		ErrorWriter(a.stderr).
		Terminate(nil)
	k.HelpFlag.Short('h')
	k.Flag("verbose", "Enable debug logging.").Short('v').Default("false").BoolVar(&cfg.verbose)

	obj2yamlCmd := k.Command("obj2yaml", "Describe an ELF object as YAML.")
	obj2yamlCmd.Arg("input", "ELF file.").Required().StringVar(&cfg.input)
	obj2yamlCmd.Flag("output", "Output path; stdout when empty.").Short('o').StringVar(&cfg.output)

	yaml2objCmd := k.Command("yaml2obj", "Build an ELF object from a YAML description.")
	yaml2objCmd.Arg("input", "YAML file.").Required().StringVar(&cfg.input)
	yaml2objCmd.Flag("output", "Output path; stdout when empty.").Short('o').StringVar(&cfg.output)

	objcopyCmd := k.Command("objcopy", "Extract the loadable memory image of an ELF object.")
	objcopyCmd.Arg("input", "ELF file.").Required().StringVar(&cfg.input)
	objcopyCmd.Arg("output", "Image path; stdout when empty.").StringVar(&cfg.output)
	objcopyCmd.Flag("yaml", "Read the input as a YAML description.").BoolVar(&cfg.yaml)

	headersCmd := k.Command("headers", "Print the file header, sections and segments.")
	headersCmd.Arg("input", "ELF file.").Required().StringVar(&cfg.input)
	headersCmd.Flag("yaml", "Read the input as a YAML description.").BoolVar(&cfg.yaml)

	browseCmd := k.Command("browse", "Browse sections interactively.")
	browseCmd.Arg("input", "ELF file.").Required().StringVar(&cfg.input)
	browseCmd.Flag("yaml", "Read the input as a YAML description.").BoolVar(&cfg.yaml)

	parsed, err := k.Parse(args)
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}

	logger := zap.NewNop()
	if cfg.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(a.stderr, "error: %v\n", err)
			return 1
		}
	}
	defer func() { _ = logger.Sync() }()
	object.SetLogger(logger.Named("object"))
	elfyaml.SetLogger(logger.Named("elfyaml"))
	rawimage.SetLogger(logger.Named("rawimage"))
	logger.Debug("running command", zap.String("command", parsed), zap.String("input", cfg.input))

	switch parsed {
	case obj2yamlCmd.FullCommand():
		err = a.obj2yaml(cfg)
	case yaml2objCmd.FullCommand():
		err = a.yaml2obj(cfg)
	case objcopyCmd.FullCommand():
		err = a.objcopy(cfg)
	case headersCmd.FullCommand():
		err = a.headers(cfg)
	case browseCmd.FullCommand():
		err = a.interactive(cfg)
	default:
		err = fmt.Errorf("unknown command %q", parsed)
	}
	return a.checkError(err)
}

func (a *app) checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(a.stderr, "error: %v\n", err)
	return 1
}

func (a *app) read(path string) ([]byte, error) {
	return afero.ReadFile(a.fs, path)
}

// write sends data to path, or to stdout when path is empty. Binary
// data is never written to a terminal.
func (a *app) write(path string, data []byte, binary bool) error {
	if path == "" {
		if binary && a.isTerminal(a.stdout) {
			return fmt.Errorf("refusing to write binary output to a terminal; use -o or redirect stdout")
		}
		_, err := a.stdout.Write(data)
		return err
	}
	return afero.WriteFile(a.fs, path, data, 0o644)
}

// load reads the input as an ELF object, or as a YAML description when
// fromYAML is set.
func (a *app) load(path string, fromYAML bool) (*object.File, error) {
	data, err := a.read(path)
	if err != nil {
		return nil, err
	}
	if fromYAML {
		f, err := elfyaml.Build(data)
		return f, errors.WithFile(errors.PhaseBuild, err, path)
	}
	f, err := object.Decode(data)
	return f, errors.WithFile(errors.PhaseDecode, err, path)
}

func (a *app) obj2yaml(cfg config) error {
	f, err := a.load(cfg.input, false)
	if err != nil {
		return err
	}
	doc, err := elfyaml.Dump(f)
	if err != nil {
		return errors.WithFile(errors.PhaseDump, err, cfg.input)
	}
	return a.write(cfg.output, doc, false)
}

func (a *app) yaml2obj(cfg config) error {
	f, err := a.load(cfg.input, true)
	if err != nil {
		return err
	}
	data, err := f.Encode()
	if err != nil {
		return errors.WithFile(errors.PhaseEncode, err, cfg.input)
	}
	return a.write(cfg.output, data, true)
}

func (a *app) objcopy(cfg config) error {
	f, err := a.load(cfg.input, cfg.yaml)
	if err != nil {
		return err
	}
	img, err := rawimage.Extract(f)
	if err != nil {
		return errors.WithFile(errors.PhaseExtract, err, cfg.input)
	}
	return a.write(cfg.output, img, true)
}

func (a *app) plan(cfg config) (*object.Layout, error) {
	f, err := a.load(cfg.input, cfg.yaml)
	if err != nil {
		return nil, err
	}
	l, err := object.Plan(f)
	return l, errors.WithFile(errors.PhaseLayout, err, cfg.input)
}

func (a *app) headers(cfg config) error {
	l, err := a.plan(cfg)
	if err != nil {
		return err
	}
	out := a.stdout
	h := l.Header
	fmt.Fprintln(out, "File:", cfg.input)
	fmt.Fprintf(out, "  Class:   %s\n", object.Classes.Name(h.Class))
	fmt.Fprintf(out, "  Data:    %s\n", object.DataEncodings.Name(h.Data))
	fmt.Fprintf(out, "  OS/ABI:  %s\n", object.OSABIs.Name(h.OSABI))
	fmt.Fprintf(out, "  Type:    %s\n", object.FileTypes.Name(h.Type))
	fmt.Fprintf(out, "  Machine: %s\n", object.Machines.Name(h.Machine))
	fmt.Fprintf(out, "  Entry:   0x%x\n", h.Entry)
	fmt.Fprintf(out, "  Size:    %s\n", humanize.IBytes(l.Size))

	fmt.Fprintln(out, "\nSections:")
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Nr", "Name", "Type", "Address", "Offset", "Size", "Flags", "Link", "Align"})
	table.SetAutoFormatHeaders(false)
	for _, s := range l.Sections {
		hdr := s.Header()
		name := hdr.Name
		if s.Implicit {
			name += " (implicit)"
		}
		table.Append([]string{
			fmt.Sprint(s.Index),
			name,
			object.SectionTypes.Name(hdr.Type),
			fmt.Sprintf("0x%x", s.Address),
			fmt.Sprintf("0x%x", s.Offset),
			humanize.IBytes(s.Size),
			strings.Join(object.SectionFlags.Names(hdr.Flags), " "),
			fmt.Sprint(s.Link),
			fmt.Sprint(s.Align),
		})
	}
	table.Render()

	if len(l.Segments) == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nSegments:")
	table = tablewriter.NewWriter(out)
	table.SetHeader([]string{"Type", "Offset", "VAddr", "FileSize", "MemSize", "Flags", "Align", "Sections"})
	table.SetAutoFormatHeaders(false)
	for _, seg := range l.Segments {
		var names []string
		for _, s := range l.Spans(seg) {
			names = append(names, s.Header().Name)
		}
		table.Append([]string{
			object.ProgTypes.Name(seg.Header.Type),
			fmt.Sprintf("0x%x", seg.Offset),
			fmt.Sprintf("0x%x", seg.VAddr),
			humanize.IBytes(seg.FileSize),
			humanize.IBytes(seg.MemSize),
			strings.Join(object.ProgFlags.Names(seg.Header.Flags), " "),
			fmt.Sprintf("0x%x", seg.Align),
			strings.Join(names, " "),
		})
	}
	table.Render()
	return nil
}

func (a *app) interactive(cfg config) error {
	if !a.isTerminal(a.stdout) {
		return fmt.Errorf("browse needs an interactive terminal")
	}
	l, err := a.plan(cfg)
	if err != nil {
		return err
	}
	return a.browse(cfg.input, l)
}
