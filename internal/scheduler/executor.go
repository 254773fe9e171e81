package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/stlalpha/v3toss/internal/store"
)

// pollLink spools the pending bundles of link and hands them to the
// configured mailer.
func (s *Scheduler) pollLink(ctx context.Context, link store.Link) PollResult {
	result := PollResult{
		Link:      link.Address,
		StartTime: time.Now(),
	}

	log.Printf("INFO: Poll of %s started", link.Address)

	paths, err := s.flusher.Flush(ctx, link)
	result.Spooled = len(paths)
	if err != nil {
		result.EndTime = time.Now()
		result.Error = err
		result.ExitCode = -1
		log.Printf("ERROR: Poll of %s: spooling failed: %v", link.Address, err)
		return result
	}

	if s.config.Mailer.Command == "" || !link.Reachable() {
		result.EndTime = time.Now()
		result.Success = true
		log.Printf("INFO: Poll of %s spooled %d file(s)", link.Address, result.Spooled)
		return result
	}

	s.runMailer(ctx, link, &result)
	return result
}

// runMailer executes the mailer command for link and records its outcome.
func (s *Scheduler) runMailer(ctx context.Context, link store.Link, result *PollResult) {
	mailer := s.config.Mailer
	r := s.buildReplacer(link)

	args := make([]string, len(mailer.Args))
	for i, arg := range mailer.Args {
		args[i] = r.Replace(arg)
	}

	cmdCtx := ctx
	var cancel context.CancelFunc
	if mailer.TimeoutSeconds > 0 {
		cmdCtx, cancel = context.WithTimeout(ctx, time.Duration(mailer.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, r.Replace(mailer.Command), args...)
	if mailer.WorkingDirectory != "" {
		cmd.Dir = r.Replace(mailer.WorkingDirectory)
	}

	cmd.Env = os.Environ()
	for key, val := range mailer.EnvironmentVars {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, r.Replace(val)))
	}
	cmd.Env = append(cmd.Env,
		"V3TOSS_LINK="+link.Address,
		"V3TOSS_HOST="+link.Host,
		"V3TOSS_PORT="+strconv.Itoa(link.Port),
		"V3TOSS_OUTBOUND="+s.outboundPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result.EndTime = time.Now()
	result.Output = stdout.String()
	result.ErrorOutput = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Success = true
		log.Printf("INFO: Poll of %s completed in %.3fs (%d file(s) spooled, mailer exit code: 0)",
			link.Address, result.EndTime.Sub(result.StartTime).Seconds(), result.Spooled)
		if result.Output != "" {
			log.Printf("DEBUG: Mailer output for %s: %s", link.Address, result.Output)
		}
	case errors.Is(cmdCtx.Err(), context.DeadlineExceeded):
		result.Error = err
		result.TimedOut = true
		result.ExitCode = -1
		log.Printf("ERROR: Mailer for %s timed out after %ds", link.Address, mailer.TimeoutSeconds)
	case errors.As(err, &exitErr):
		result.Error = err
		result.ExitCode = exitErr.ExitCode()
		log.Printf("ERROR: Mailer for %s failed with exit code %d", link.Address, result.ExitCode)
		if result.ErrorOutput != "" {
			log.Printf("ERROR: Mailer for %s stderr: %s", link.Address, result.ErrorOutput)
		}
	default:
		result.Error = err
		result.ExitCode = -1
		log.Printf("ERROR: Mailer for %s failed to start: %v", link.Address, err)
	}
}

// buildReplacer substitutes the mailer placeholders for link.
func (s *Scheduler) buildReplacer(link store.Link) *strings.Replacer {
	now := time.Now()
	flavour := link.Flavour
	if flavour == "" {
		flavour = "normal"
	}
	return strings.NewReplacer(
		"{LINK}", link.Address,
		"{HOST}", link.Host,
		"{PORT}", strconv.Itoa(link.Port),
		"{FLAVOUR}", flavour,
		"{OUTBOUND}", s.outboundPath,
		"{TIMESTAMP}", strconv.FormatInt(now.Unix(), 10),
		"{DATE}", now.Format("2006-01-02"),
		"{TIME}", now.Format("15:04:05"),
	)
}
