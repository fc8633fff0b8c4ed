package orchestrator

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLauncher struct {
	mu        sync.Mutex
	args      [][]string
	fail      map[string]bool
	cancelled int
}

func (r *recordingLauncher) Start([]string, io.Writer) (Process, error) {
	return nil, errors.New("not supported")
}

func (r *recordingLauncher) Run(ctx context.Context, args []string, _ io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.args = append(r.args, args)
	if ctx.Err() != nil {
		r.cancelled++
	}
	if r.fail[args[2]] {
		return errors.New("exit status 1")
	}
	return nil
}

func TestRunFleet(t *testing.T) {
	launcher := &recordingLauncher{}

	err := RunFleet(context.Background(), launcher, FleetConfig{
		Count:       3,
		Prefix:      "w_1_",
		Concurrency: 5,
		MetricsPort: 9100,
		CommonArgs:  []string{"--config", "c.yaml"},
	}, &bytes.Buffer{})

	require.NoError(t, err)
	require.Len(t, launcher.args, 3)
	sort.Slice(launcher.args, func(i, j int) bool { return launcher.args[i][2] < launcher.args[j][2] })
	assert.Equal(t,
		[]string{"worker", "--name", "w_1_1", "--concurrency", "5", "--exit-when-drained", "--metrics-port", "9100", "--config", "c.yaml"},
		launcher.args[0])
	assert.Equal(t, "w_1_3", launcher.args[2][2])
	assert.Equal(t, "9102", launcher.args[2][7])
}

func TestRunFleet_ReportsEveryFailure(t *testing.T) {
	launcher := &recordingLauncher{fail: map[string]bool{"w_1": true, "w_3": true}}

	err := RunFleet(context.Background(), launcher, FleetConfig{Count: 3, Prefix: "w_", Concurrency: 1}, &bytes.Buffer{})

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.Len(t, launcher.args, 3)
	assert.Zero(t, launcher.cancelled, "a failing worker must not cancel its siblings")
	assert.ErrorContains(t, err, "worker w_1")
	assert.ErrorContains(t, err, "worker w_3")
}

func TestRunFleet_RejectsEmptyFleet(t *testing.T) {
	assert.Error(t, RunFleet(context.Background(), &recordingLauncher{}, FleetConfig{}, &bytes.Buffer{}))
}
