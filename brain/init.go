package brain

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/joeycumines/go-brain/brainerr"
	"github.com/joeycumines/go-brain/childproc"
	"github.com/joeycumines/go-brain/logging"
	"github.com/joeycumines/go-brain/serialize"
	"github.com/joeycumines/go-brain/store"
	"github.com/joeycumines/go-brain/task"
	"github.com/joeycumines/go-brain/wrapper"
)

// EnvChildFor re-exports childproc's sentinel environment variable, for
// hosts that want to check it themselves before calling Main.
const EnvChildFor = childproc.EnvChildFor

var baseType = reflect.TypeOf(Base{})

// Init is the dynamic initializer (spec §4.3). It assigns namedInputs to
// instance's exported fields by name (the Go stand-in for **kwargs +
// setattr), admits every exported, probe-passing field declared before
// this call into the shared store (spec's ordering contract), and binds
// every descriptor instance.DeclareTasks() returns into Base.Tasks().
//
// factoryName identifies instance's constructor in the re-exec child
// registry (see RegisterFactory, Main); it is required only if any
// descriptor has Process=true. Pass "" if the Brain never hosts
// child-process tasks.
func Init(logger logging.Logger, instance Brain, factoryName string, namedInputs map[string]any) error {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	rv := reflect.ValueOf(instance)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("brain: Init requires a pointer to a struct, got %T", instance)
	}
	elem := rv.Elem()

	inputs := make(map[string]any, len(namedInputs)+1)
	for k, v := range namedInputs {
		inputs[k] = v
	}
	if _, ok := inputs["Logger"]; !ok {
		inputs["Logger"] = logger
	}
	for name, v := range inputs {
		f := elem.FieldByName(name)
		if !f.IsValid() || !f.CanSet() {
			continue
		}
		rv := reflect.ValueOf(v)
		if rv.IsValid() && rv.Type().AssignableTo(f.Type()) {
			f.Set(rv)
		}
	}

	base := instance.Base()
	base.logger = logger
	base.name = factoryName

	childMode := factoryName != "" && os.Getenv(EnvChildFor) == factoryName
	if childMode {
		w := childproc.NewWorker(os.Stdout)
		base.shared = store.NewMirror(w.Store(), logger)
		activeChildWorker.set(base, w)
	} else {
		st := store.New()
		base.owned = st
		base.shared = store.NewMirror(st, logger)
	}

	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && f.Type == baseType {
			continue
		}
		value := elem.Field(i).Interface()
		if serialize.Probe(value) {
			if err := base.shared.Set(f.Name, value); err != nil {
				logger.Log(fmt.Sprintf("[dynamic_init] cannot serialize attribute [%s].", f.Name), logging.Warning)
			}
		} else {
			logger.Log(fmt.Sprintf("[dynamic_init] cannot serialize attribute [%s].", f.Name), logging.Warning)
		}
	}

	descriptors, err := instance.DeclareTasks()
	if err != nil {
		return &brainerr.ConfigError{Task: factoryName, Err: fmt.Errorf("DeclareTasks: %w", err)}
	}

	needsChild := false
	for _, d := range descriptors {
		if d.Process {
			needsChild = true
			break
		}
	}
	if needsChild && !childMode {
		if factoryName == "" {
			return &brainerr.ConfigError{Task: "", Err: fmt.Errorf("a process=true task requires a non-empty factoryName")}
		}
		base.child = childproc.NewChild(factoryName, base.owned, logger)
	}

	base.tasks = make([]*task.Bound, 0, len(descriptors))
	base.byName = make(map[string]*task.Bound, len(descriptors))
	for _, d := range descriptors {
		var host wrapper.ChildHost
		if !childMode {
			host = base.child
		}
		bt := wrapper.Bind(d, logger, host)
		base.tasks = append(base.tasks, bt)
		base.byName[d.Name] = bt
	}

	if childMode {
		w := activeChildWorker.get(base)
		w.SetExecutor(func(ctx context.Context, taskName string, hasTimeout bool, timeout time.Duration) (int32, any, error) {
			bt, ok := base.byName[taskName]
			if !ok {
				return int32(task.ErrorOccurred), nil, fmt.Errorf("brain: unknown task %q", taskName)
			}
			rep := bt.Invoke(ctx)
			return int32(rep.Status), rep.Result, rep.Err
		})
	}

	return nil
}

// factory constructs a fresh Brain instance, given the Logger to use. It
// is what a host registers under a stable name so that a re-exec'd child
// process can rebuild the same kind of Brain (spec §4.4 Policy C: "a
// child process dedicated to the Brain").
type factory func(logger logging.Logger) (Brain, error)

var (
	factoriesMu sync.Mutex
	factories   = map[string]factory{}
)

// RegisterFactory associates name with a constructor, so that Main can
// rebuild the same Brain inside a re-exec'd child process. name must
// match the factoryName passed to Init for any descriptor with
// Process=true.
func RegisterFactory(name string, ctor func(logger logging.Logger) (Brain, error)) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = ctor
}

// childWorkerRegistry tracks the single Worker created for the current
// process's Base, so Main can find it after the registered constructor
// (and its call to Init) has returned. There is at most one live entry
// per process: a re-exec'd child hosts exactly one Brain.
type childWorkerRegistry struct {
	sync.Mutex
	m map[*Base]*childproc.Worker
}

func (r *childWorkerRegistry) get(b *Base) *childproc.Worker {
	r.Lock()
	defer r.Unlock()
	return r.m[b]
}

func (r *childWorkerRegistry) set(b *Base, w *childproc.Worker) {
	r.Lock()
	defer r.Unlock()
	r.m[b] = w
}

var activeChildWorker = &childWorkerRegistry{m: map[*Base]*childproc.Worker{}}

// Main checks whether the process was re-exec'd as a child worker (spec
// §4.4 Policy C's "child process dedicated to the Brain"); if so it
// serves task requests until the parent closes the pipe and then exits
// the process, never returning. Otherwise it returns false at once: the
// caller's real main() should call Main() first thing and treat a false
// return value as "keep going, this is the supervising process".
func Main() bool {
	name := os.Getenv(EnvChildFor)
	if name == "" {
		return false
	}

	factoriesMu.Lock()
	ctor, ok := factories[name]
	factoriesMu.Unlock()
	if !ok {
		fmt.Fprintf(os.Stderr, "brain: no factory registered for %q\n", name)
		os.Exit(1)
	}

	logger := logging.NewStdLogger(logging.Info)
	instance, err := ctor(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "brain: child constructor failed: %v\n", err)
		os.Exit(1)
	}

	base := instance.Base()
	w := activeChildWorker.get(base)
	if w == nil {
		fmt.Fprintln(os.Stderr, "brain: child worker not initialized (constructor must call Init)")
		os.Exit(1)
	}

	if err := w.Serve(context.Background(), io.Reader(os.Stdin)); err != nil {
		os.Exit(0)
	}
	os.Exit(0)
	return true
}
