// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/campusmind/campusmind/services/assistant/datatypes"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive question-answering session",
	Long: `Opens a websocket to the assistant and asks questions interactively.
While the assistant works, the CLI shows which stage it is in (routing,
retrieval, grading, generation). Every question is an independent turn;
the assistant keeps no conversation history. Type 'exit' or 'quit' to end.`,
	Run: runChatCommand,
}

// chatSession drives one interactive session over an established
// websocket. Output and input are injected so tests can run the loop
// against a fake service.
type chatSession struct {
	conn   *websocket.Conn
	reader InputReader
	out    io.Writer
	model  string
}

func runChatCommand(cmd *cobra.Command, args []string) {
	endpoint := fmt.Sprintf("ws://%s/v1/ask/ws",
		strings.TrimPrefix(serverBaseURL(), "http://"))
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		log.Fatalf("Failed to connect to the assistant at %s: %v", endpoint, err)
	}
	defer conn.Close()

	fmt.Println(styles.Title.Render("Campusmind program assistant"))
	fmt.Println(styles.Muted.Render("Each question is answered independently. Type 'exit' or 'quit' to end."))

	session := &chatSession{
		conn:   conn,
		reader: NewInteractiveInputReader(50, styles.Prompt.Render("> ")),
		out:    os.Stdout,
		model:  requestModel(),
	}
	if err := session.run(); err != nil {
		log.Fatalf("Chat session error: %v", err)
	}
}

// run executes the chat loop until exit, EOF, or a connection error.
func (s *chatSession) run() error {
	for {
		input, err := s.reader.ReadLine()
		if err == io.EOF {
			fmt.Fprintln(s.out, styles.Muted.Render("ending chat"))
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if input == "exit" || input == "quit" {
			fmt.Fprintln(s.out, styles.Muted.Render("ending chat"))
			return nil
		}
		if input == "" {
			continue
		}
		if err := s.askOnce(input); err != nil {
			return err
		}
	}
}

// askOnce sends one question and renders progress frames until the answer
// or an error frame arrives.
func (s *chatSession) askOnce(question string) error {
	req := datatypes.AskRequest{Question: question, Model: s.model}
	started := time.Now()
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("sending question: %w", err)
	}

	for {
		var frame datatypes.ProgressFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("reading from the assistant: %w", err)
		}
		switch frame.Type {
		case "node":
			s.renderProgress(frame)
		case "answer":
			if frame.Response != nil {
				s.renderAnswer(*frame.Response)
			}
			fmt.Fprintln(s.out, styles.Muted.Render(
				fmt.Sprintf("answered in %.1fs", time.Since(started).Seconds())))
			return nil
		case "error":
			// Per-turn errors (e.g. an unsupported model) leave the
			// connection usable for the next question.
			fmt.Fprintln(s.out, styles.Error.Render("error: "+frame.Error))
			return nil
		}
	}
}

func (s *chatSession) renderProgress(frame datatypes.ProgressFrame) {
	line := "  … " + frame.Node
	if frame.Decision != "" {
		line += " → " + frame.Decision
	}
	fmt.Fprintln(s.out, styles.Progress.Render(line))
}

func (s *chatSession) renderAnswer(resp datatypes.AskResponse) {
	fmt.Fprintln(s.out, styles.Answer.Render(resp.Answer))
	if resp.Outcome == "fallback" {
		fmt.Fprintln(s.out, styles.Warning.Render(
			"Note: the assistant could not fully verify this answer."))
	}
	for i, source := range resp.Sources {
		label := source.Source
		if source.URL != "" {
			label = fmt.Sprintf("%s (%s)", source.Source, source.URL)
		}
		fmt.Fprintf(s.out, "  %d. %s\n", i+1, styles.Source.Render(label))
	}
}
