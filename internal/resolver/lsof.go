package resolver

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/djlord-it/devtrigger/internal/domain"
)

// LsofTable lists processes with ps and their sockets with lsof.
// Works on macOS and Linux.
type LsofTable struct {
	runner CommandRunner
}

func NewLsofTable(runner CommandRunner) *LsofTable {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &LsofTable{runner: runner}
}

func (t *LsofTable) Name() string { return BackendLsof }

func (t *LsofTable) Processes(ctx context.Context) ([]Process, error) {
	res, err := t.runner.Run(ctx, "ps", "-ax", "-o", "pid=,command=")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, toolFailure("ps", res)
	}
	return parsePS(res.Stdout), nil
}

func (t *LsofTable) ListeningPorts(ctx context.Context, pid int) ([]int, error) {
	res, err := t.runner.Run(ctx, "lsof", "-nP", "-a", "-p", strconv.Itoa(pid), "-iTCP", "-sTCP:LISTEN")
	if err != nil {
		return nil, err
	}
	// lsof exits 1 when nothing matched.
	if res.ExitCode == 1 && len(bytes.TrimSpace(res.Stdout)) == 0 {
		return nil, nil
	}
	if res.ExitCode != 0 {
		return nil, toolFailure("lsof", res)
	}
	return parseLsof(res.Stdout), nil
}

func toolFailure(tool string, res RunResult) *domain.DiscoveryError {
	detail := strings.TrimSpace(string(res.Stderr))
	if detail == "" {
		detail = fmt.Sprintf("exit status %d", res.ExitCode)
	}
	return &domain.DiscoveryError{
		Kind:     domain.DiscoveryToolFailure,
		Tool:     tool,
		ExitCode: res.ExitCode,
		Detail:   detail,
	}
}

func parsePS(out []byte) []Process {
	var procs []Process
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil || pid <= 0 {
			continue
		}
		procs = append(procs, Process{PID: pid, Command: strings.Join(fields[1:], " ")})
	}
	return procs
}

func parseLsof(out []byte) []int {
	seen := make(map[int]struct{})
	var ports []int
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "COMMAND") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 9 {
			continue
		}
		port := portFromLsofName(lsofNameField(fields))
		if port <= 0 || port > 65535 {
			continue
		}
		if _, ok := seen[port]; ok {
			continue
		}
		seen[port] = struct{}{}
		ports = append(ports, port)
	}
	return ports
}

// lsofNameField returns the NAME column, e.g. "*:8001" from
// "... TCP *:8001 (LISTEN)".
func lsofNameField(fields []string) string {
	for i := len(fields) - 1; i >= 0; i-- {
		f := fields[i]
		if strings.Contains(f, ":") && strings.ContainsAny(f, "0123456789") {
			return f
		}
	}
	return fields[len(fields)-1]
}

func portFromLsofName(name string) int {
	if i := strings.LastIndex(name, ":"); i != -1 {
		name = name[i+1:]
	}
	end := 0
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, _ := strconv.Atoi(name[:end])
	return n
}
