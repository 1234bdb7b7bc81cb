package resolver

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/djlord-it/devtrigger/internal/domain"
)

const DefaultProcRoot = "/proc"

// tcpListen is the st column value for LISTEN in /proc/net/tcp.
const tcpListen = "0A"

// ProcfsTable reads the process table and socket tables from procfs.
type ProcfsTable struct {
	root string
}

func NewProcfsTable(root string) *ProcfsTable {
	return &ProcfsTable{root: root}
}

func (t *ProcfsTable) Name() string { return BackendProcfs }

func (t *ProcfsTable) Processes(ctx context.Context) ([]Process, error) {
	entries, err := os.ReadDir(t.root)
	if err != nil {
		return nil, t.failure(err)
	}
	var procs []Process
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(filepath.Join(t.root, e.Name(), "cmdline"))
		if err != nil || len(raw) == 0 {
			// exited, kernel thread or not ours
			continue
		}
		cmd := strings.TrimSpace(string(bytes.ReplaceAll(raw, []byte{0}, []byte{' '})))
		procs = append(procs, Process{PID: pid, Command: cmd})
	}
	return procs, nil
}

func (t *ProcfsTable) ListeningPorts(ctx context.Context, pid int) ([]int, error) {
	inodes, err := t.socketInodes(pid)
	if err != nil {
		return nil, err
	}
	if len(inodes) == 0 {
		return nil, nil
	}

	seen := make(map[int]struct{})
	var ports []int
	for _, name := range []string{"tcp", "tcp6"} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(filepath.Join(t.root, strconv.Itoa(pid), "net", name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, t.failure(err)
		}
		found := parseNetTCP(f, inodes)
		f.Close()
		for _, p := range found {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				ports = append(ports, p)
			}
		}
	}
	return ports, nil
}

func (t *ProcfsTable) socketInodes(pid int) (map[string]struct{}, error) {
	dir := filepath.Join(t.root, strconv.Itoa(pid), "fd")
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, t.failure(err)
	}
	inodes := make(map[string]struct{})
	for _, e := range entries {
		link, err := os.Readlink(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		if strings.HasPrefix(link, "socket:[") && strings.HasSuffix(link, "]") {
			inodes[link[len("socket:["):len(link)-1]] = struct{}{}
		}
	}
	return inodes, nil
}

func (t *ProcfsTable) failure(err error) *domain.DiscoveryError {
	return &domain.DiscoveryError{
		Kind:   domain.DiscoveryToolFailure,
		Tool:   BackendProcfs,
		Detail: err.Error(),
		Err:    err,
	}
}

// parseNetTCP returns the local ports of LISTEN rows whose inode is in inodes.
func parseNetTCP(r io.Reader, inodes map[string]struct{}) []int {
	var ports []int
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 10 || fields[0] == "sl" {
			continue
		}
		if fields[3] != tcpListen {
			continue
		}
		if _, ok := inodes[fields[9]]; !ok {
			continue
		}
		local := fields[1]
		i := strings.LastIndex(local, ":")
		if i == -1 {
			continue
		}
		port, err := strconv.ParseUint(local[i+1:], 16, 16)
		if err != nil || port == 0 {
			continue
		}
		ports = append(ports, int(port))
	}
	return ports
}
