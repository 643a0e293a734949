package main

// Ask a question from the terminal:
//   go run ./cmd/ask -dataset sales.csv -context notes.pdf "Why did revenue drop in Q2?"

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"dataghost-gateway/internal/api"
	"dataghost-gateway/internal/results"
	"dataghost-gateway/internal/shared/config"
	"dataghost-gateway/internal/shared/storage/object"
	"dataghost-gateway/internal/workspace"
)

type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	cfg := config.Load()

	baseURL := flag.String("base-url", cfg.APIBaseURL, "Data Ghost API base URL")
	datasetPath := flag.String("dataset", "", "CSV or XLSX dataset to upload first (optional)")
	speakPath := flag.String("speak", "", "Write the answer readback audio to this path (optional)")
	var contextPaths fileList
	flag.Var(&contextPaths, "context", "Context document to upload (repeatable)")
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: ask [-base-url URL] [-dataset FILE] [-context FILE]... [-speak OUT.mp3] \"question\"")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := api.NewClient(*baseURL, api.WithHTTPClient(&http.Client{Timeout: cfg.APITimeout}))
	sess := workspace.NewSession("cli", client, workspace.Options{DefaultVoiceID: cfg.DefaultVoiceID})

	if err := run(ctx, sess, runArgs{
		dataset:  *datasetPath,
		contexts: contextPaths,
		question: question,
		speak:    *speakPath,
	}, bufio.NewReader(os.Stdin), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", api.MessageOf(err))
		if id := api.RequestIDOf(err); id != "" {
			fmt.Fprintf(os.Stderr, "request id: %s\n", id)
		}
		os.Exit(1)
	}
}

type runArgs struct {
	dataset  string
	contexts []string
	question string
	speak    string
}

func run(ctx context.Context, sess *workspace.Session, args runArgs, in *bufio.Reader, out io.Writer) error {
	if args.dataset != "" {
		file, closeFn, err := openFile(args.dataset)
		if err != nil {
			return err
		}
		upload, err := sess.UploadDataset(ctx, file)
		closeFn()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Uploaded dataset %s (%d rows)\n", upload.DatasetID, upload.Rows)
	}

	if len(args.contexts) > 0 {
		files := make([]api.File, 0, len(args.contexts))
		for _, p := range args.contexts {
			file, closeFn, err := openFile(p)
			if err != nil {
				return err
			}
			defer closeFn()
			files = append(files, file)
		}
		docs, err := sess.UploadContext(ctx, files)
		fmt.Fprintf(out, "Uploaded %d of %d context documents\n", len(docs), len(files))
		if err != nil {
			return err
		}
	}

	state, err := sess.Ask(ctx, args.question)
	for err == nil {
		if _, ok := state.(workspace.NeedsClarification); !ok {
			break
		}
		answers, perr := promptClarifications(sess.Snapshot().Conversation.Clarifications, in, out)
		if perr != nil {
			return perr
		}
		state, err = sess.SubmitClarifications(ctx, answers)
	}
	if err != nil {
		return err
	}

	view := sess.Snapshot().Conversation.Answer
	if view == nil {
		return errors.New("no answer returned")
	}
	printAnswer(out, *view)

	if args.speak != "" {
		rb, err := sess.Readback(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args.speak, rb.Audio, 0o644); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		fmt.Fprintf(out, "\nReadback saved to %s (%s, %d bytes)\n", args.speak, rb.ContentType, rb.SizeBytes)
	}
	return nil
}

// promptClarifications asks each question on in. An empty line keeps the
// value shown in brackets.
func promptClarifications(fields []workspace.ClarificationField, in *bufio.Reader, out io.Writer) (map[string]string, error) {
	answers := make(map[string]string, len(fields))
	fmt.Fprintln(out, "The API needs a few clarifications:")
	for _, f := range fields {
		prompt := f.Prompt
		if len(f.Options) > 0 {
			prompt += " (" + strings.Join(f.Options, "/") + ")"
		}
		fmt.Fprintf(out, "%s [%s]: ", prompt, f.Value)
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read answer: %w", err)
		}
		if v := strings.TrimSpace(line); v != "" {
			answers[f.Key] = v
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
		}
	}
	return answers, nil
}

func printAnswer(out io.Writer, view results.AnswerView) {
	fmt.Fprintf(out, "\n%s\n\n%s\n", view.Headline, view.Narrative)

	fmt.Fprintf(out, "\n%s\n", view.Confidence.Title)
	for _, r := range view.Confidence.Reasons {
		fmt.Fprintf(out, "  - %s\n", r)
	}
	if view.Confidence.Message != "" {
		fmt.Fprintf(out, "  %s\n", view.Confidence.Message)
	}

	if len(view.Drivers) > 0 {
		fmt.Fprintln(out, "\nDrivers:")
		for _, d := range view.Drivers {
			fmt.Fprintf(out, "  %s  %s\n", d.Formatted, d.Name)
			if d.HasEvidence {
				fmt.Fprintf(out, "      %s\n", d.Evidence)
			}
		}
	}

	for _, s := range view.SQL {
		fmt.Fprintf(out, "\n-- %s\n%s\n", s.Label, s.Query)
	}

	if view.Cost != nil {
		fmt.Fprintf(out, "\nCost: %s, %s prompt / %s completion tokens, %s\n",
			view.Cost.Model, view.Cost.PromptTokens, view.Cost.CompletionTokens, view.Cost.USD)
	}
	if view.RequestID != "" {
		fmt.Fprintf(out, "Request id: %s\n", view.RequestID)
	}
}

func openFile(p string) (api.File, func(), error) {
	f, err := os.Open(p)
	if err != nil {
		return api.File{}, nil, err
	}
	head, body, err := object.Sniff(f)
	if err != nil {
		_ = f.Close()
		return api.File{}, nil, err
	}
	name := filepath.Base(p)
	return api.File{
		Name:        name,
		ContentType: object.ContentType(name, head),
		Content:     body,
	}, func() { _ = f.Close() }, nil
}
