/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/notargets/gointerp/InputParameters"
	"github.com/notargets/gointerp/comm"
	"github.com/notargets/gointerp/interp"
	"github.com/notargets/gointerp/mesh"
	"github.com/notargets/gointerp/mesh/metis"
	"github.com/notargets/gointerp/utils"
)

const exampleJob = `
########################################
Title: "Unit square, ring stencil"
Ranks: 4
Store: true
Iterations: 3
Stencil:
  Kind: ring        # or onecell
  Rings: 1
  MinSize: 6
Weights: pseudolaplacian # or shape
Partitioner: metis       # or index
Mesh:
  Generate:
    Kind: rect      # line, rect or box; or File: mesh.su2
    Cells: [16, 16]
    Min: [0, 0]
    Max: [1, 1]
    Elements: tri
Variables:
  rho: [1, 0.5, 0.25]
  p: [2, -1, 3]
Probes:
  - [0.5, 0.5]
Targets:
  Kind: random      # or grid
  Count: 1000
########################################
`

// ProbeCmd runs an interpolation job
var ProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Interpolate linear fields onto a target cloud and sample probes",
	Long: `
Builds or reads a mesh, partitions it across ranks, interpolates linear fields
onto a target cloud and reports the error against the exact values, then
samples each probe coordinate.

gointerp probe -I job.yaml --ranks 4 --store`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ip  *InputParameters.InterpParameters
			log *zap.Logger
			jr  *JobResult
		)
		fname, _ := cmd.Flags().GetString("inputConditionsFile")
		if ip, err = readJob(fname, cmd.OutOrStdout()); err != nil {
			return
		}
		if r := viper.GetInt("ranks"); r > 0 {
			ip.Ranks = r
		}
		if viper.GetBool("store") {
			ip.Store = true
		}
		if err = ip.Validate(); err != nil {
			return
		}
		if log, err = newLogger(); err != nil {
			return
		}
		defer func() { _ = log.Sync() }()
		ip.Print(cmd.OutOrStdout())
		opts := JobOptions{CountPerf: viper.GetBool("perf")}
		if viper.GetBool("verbose") {
			opts.Stats = cmd.OutOrStdout()
		}
		if jr, err = RunJob(ip, log, opts); err != nil {
			return
		}
		jr.Print(cmd.OutOrStdout())
		return
	},
}

func init() {
	rootCmd.AddCommand(ProbeCmd)
	ProbeCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML job file, see the example printed when it is missing")
	ProbeCmd.Flags().IntP("ranks", "r", 0, "number of ranks, overrides the job file")
	ProbeCmd.Flags().Bool("store", false, "store resolution state between iterations")
	ProbeCmd.Flags().Bool("perf", false, "count CPU instructions spent in the job")
	_ = viper.BindPFlag("ranks", ProbeCmd.Flags().Lookup("ranks"))
	_ = viper.BindPFlag("store", ProbeCmd.Flags().Lookup("store"))
	_ = viper.BindPFlag("perf", ProbeCmd.Flags().Lookup("perf"))
}

func readJob(fname string, w io.Writer) (ip *InputParameters.InterpParameters, err error) {
	if len(fname) == 0 {
		fmt.Fprintf(w, "Example File:%s\n", exampleJob)
		return nil, fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile)")
	}
	var data []byte
	if data, err = os.ReadFile(fname); err != nil {
		return
	}
	ip = &InputParameters.InterpParameters{}
	if err = ip.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return
}

// RankResult summarises the target interpolation on one rank. Target
// indices are global positions in the target cloud.
type RankResult struct {
	Targets           int
	Unresolved        int
	UnresolvedTargets []int
	MaxError          float64
	WorstTarget       int // -1 when no target resolved
	CacheHits         int
}

type ProbeResult struct {
	Coord    []float64
	Location interp.ProbeLocation
	Values   []float64 // nil when no rank holds the probe
}

type JobResult struct {
	Variables    []string
	Ranks        []RankResult
	Probes       []ProbeResult
	Instructions uint64
	Memory       utils.MemUsage
	targets      *utils.PartitionMap
}

// JobOptions controls what RunJob measures and reports beyond the results
type JobOptions struct {
	CountPerf bool
	Stats     io.Writer // per partition mesh statistics, skipped when nil
}

// RunJob executes a validated job, one goroutine per rank
func RunJob(ip *InputParameters.InterpParameters, log *zap.Logger, opts JobOptions) (jr *JobResult, err error) {
	var (
		m      *mesh.Mesh
		eToP   []int
		parts  []*mesh.Mesh
		P      = ip.Ranks
		names  = ip.VariableNames()
		coeffs = make([][]float64, len(names))
	)
	for v, name := range names {
		coeffs[v] = ip.Variables[name]
	}
	if m, err = buildMesh(ip); err != nil {
		return
	}
	for i, p := range ip.Probes {
		if len(p) != m.Dim {
			return nil, fmt.Errorf("%w: probe %d has dimension %d, mesh has %d",
				interp.ErrSetup, i, len(p), m.Dim)
		}
	}
	if eToP, err = partition(ip, m, log); err != nil {
		return
	}
	if parts, err = mesh.Split(m, eToP, P); err != nil {
		return
	}
	resolvers := make([]*interp.PointResolver, P)
	for r, pm := range parts {
		if resolvers[r], err = newResolver(ip, pm, log); err != nil {
			return
		}
		if opts.Stats != nil {
			pm.PrintStatistics(opts.Stats)
		}
	}
	cloud := targetCloud(ip, m)
	tpm := utils.NewPartitionMap(P, len(cloud))
	tables := make([]*interp.CoordinateTable, P)
	for r := range tables {
		kMin, _ := tpm.GetBucketRange(r)
		local := cloud[kMin : kMin+tpm.GetBucketDimension(r)]
		if tables[r], err = interp.NewCoordinateTable(m.Dim, local); err != nil {
			return
		}
	}

	jr = &JobResult{
		Variables: names,
		Ranks:     make([]RankResult, P),
		Probes:    make([]ProbeResult, len(ip.Probes)),
		targets:   tpm,
	}
	job := func() error {
		return comm.Run(P, func(c comm.Communicator) error {
			return runRank(c, ip, parts[c.Rank()], resolvers[c.Rank()], tables[c.Rank()],
				tpm, coeffs, jr, log)
		})
	}
	defer func() { jr.Memory = utils.GetMemUsage() }()
	if !opts.CountPerf {
		err = job()
		return
	}
	count, ran, perr := countInstructions(job)
	switch {
	case perr == nil:
		jr.Instructions = count
	case ran:
		err = perr
	default:
		log.Warn("instruction counter unavailable", zap.Error(perr))
		err = job()
	}
	return
}

// runRank is one rank's share of the job. Each rank writes only its own slot
// of jr.Ranks; rank 0 writes the probes.
func runRank(c comm.Communicator, ip *InputParameters.InterpParameters, part *mesh.Mesh,
	pr *interp.PointResolver, targets *interp.CoordinateTable, tpm *utils.PartitionMap,
	coeffs [][]float64, jr *JobResult, log *zap.Logger) (err error) {
	var (
		rank = c.Rank()
		src  = interp.NewLinearField(part, coeffs...)
		di   = interp.New(c, pr, interp.WithStore(ip.Store), interp.WithLogger(log))
		out  = targets.NewOutput(len(coeffs))
		rep  *interp.Report
		res  = RankResult{Targets: targets.Len(), WorstTarget: -1}
	)
	for it := 0; it < ip.Iterations; it++ {
		if rep, err = di.Interpolate(src, targets, out); err != nil {
			return
		}
		if rep.CacheHit {
			res.CacheHits++
		}
	}
	res.Unresolved = len(rep.Unresolved)
	for _, u := range rep.Unresolved {
		res.UnresolvedTargets = append(res.UnresolvedTargets, tpm.GetGlobalK(u.Index, rank))
	}
	if utils.IsNan(out) {
		log.Warn("interpolated values contain NaN", zap.Int("rank", rank))
	}
	for i, owner := range rep.Owners {
		if owner < 0 {
			continue
		}
		for v := range coeffs {
			e := math.Abs(out[v][i] - interp.EvalLinear(coeffs[v], targets.Coords[i]))
			if res.WorstTarget < 0 || e > res.MaxError {
				res.MaxError, res.WorstTarget = e, tpm.GetGlobalK(i, rank)
			}
		}
	}
	jr.Ranks[rank] = res

	for j, coord := range ip.Probes {
		p := interp.NewProbe(c, pr, coord).WithLogger(log)
		vals, serr := p.Sample(src)
		if serr != nil && !errors.Is(serr, interp.ErrUnresolvedPoint) {
			return serr
		}
		if rank == 0 {
			loc, _ := p.Location()
			if serr != nil {
				loc = interp.ProbeLocation{Owner: -1}
			}
			jr.Probes[j] = ProbeResult{Coord: coord, Location: loc, Values: vals}
		}
	}
	return
}

func buildMesh(ip *InputParameters.InterpParameters) (*mesh.Mesh, error) {
	if ip.Mesh.File != "" {
		return mesh.ReadMeshFile(ip.Mesh.File)
	}
	g := ip.Mesh.Generate
	switch g.Kind {
	case "line":
		xs := make([]float64, g.Cells[0]+1)
		for i := range xs {
			xs[i] = g.Min[0] + float64(i)*(g.Max[0]-g.Min[0])/float64(g.Cells[0])
		}
		return mesh.NewLineMesh(xs), nil
	case "rect":
		return mesh.NewRectMesh(g.Cells[0], g.Cells[1], [2]float64{g.Min[0], g.Min[1]},
			[2]float64{g.Max[0], g.Max[1]}, g.Elements == "quad"), nil
	case "box":
		return mesh.NewBoxMesh(g.Cells[0], g.Cells[1], g.Cells[2], [3]float64{g.Min[0], g.Min[1], g.Min[2]},
			[3]float64{g.Max[0], g.Max[1], g.Max[2]}, g.Elements == "hex"), nil
	}
	return nil, fmt.Errorf("%w: unknown mesh kind %q", interp.ErrSetup, g.Kind)
}

func partition(ip *InputParameters.InterpParameters, m *mesh.Mesh, log *zap.Logger) ([]int, error) {
	if ip.Partitioner == "metis" {
		return metis.NewPartitioner(m, metis.DefaultConfig(ip.Ranks), log).Partition()
	}
	return mesh.PartitionByIndex(m, ip.Ranks), nil
}

func newResolver(ip *InputParameters.InterpParameters, m *mesh.Mesh, log *zap.Logger) (*interp.PointResolver, error) {
	loc, err := mesh.NewBinLocator(m)
	if err != nil {
		return nil, err
	}
	sk, err := interp.ParseStencilKind(ip.Stencil.Kind)
	if err != nil {
		return nil, err
	}
	var sb interp.StencilBuilder = interp.OneCellStencil{}
	if sk == interp.Ring {
		sb = interp.RingStencil{
			Rings:        ip.Stencil.Rings,
			MinSize:      ip.Stencil.MinSize,
			FailBelowMin: ip.Stencil.FailBelowMin,
			Logger:       log,
		}
	}
	wk, err := interp.ParseWeightKind(ip.Weights)
	if err != nil {
		return nil, err
	}
	wf, err := interp.NewWeightFunction(wk)
	if err != nil {
		return nil, err
	}
	return interp.NewPointResolver(loc, sb, wf)
}

// targetCloud places Targets.Count coordinates inside the mesh bounding box,
// uniformly at random or on a regular lattice of at least Count points
func targetCloud(ip *InputParameters.InterpParameters, m *mesh.Mesh) (coords [][]float64) {
	min, max := m.BoundingBox()
	n := ip.Targets.Count
	if n == 0 || len(min) == 0 {
		return nil
	}
	if ip.Targets.Kind == "grid" {
		per, total := 1, 1
		for total < n {
			per++
			total = 1
			for d := 0; d < m.Dim; d++ {
				total *= per
			}
		}
		for k := 0; k < total; k++ {
			x := make([]float64, m.Dim)
			idx := k
			for d := range x {
				t := 0.5
				if per > 1 {
					t = float64(idx%per) / float64(per-1)
				}
				x[d] = min[d] + t*(max[d]-min[d])
				idx /= per
			}
			coords = append(coords, x)
		}
		return
	}
	rng := rand.New(rand.NewSource(ip.Targets.Seed))
	coords = make([][]float64, n)
	for i := range coords {
		coords[i] = make([]float64, m.Dim)
		for d := range coords[i] {
			coords[i][d] = min[d] + rng.Float64()*(max[d]-min[d])
		}
	}
	return
}

func (jr *JobResult) Print(w io.Writer) {
	fmt.Fprintf(w, "%6s%10s%12s%14s%12s\n", "Rank", "Targets", "Unresolved", "MaxError", "CacheHits")
	for r, rr := range jr.Ranks {
		fmt.Fprintf(w, "%6d%10d%12d%14.6e%12d\n", r, rr.Targets, rr.Unresolved, rr.MaxError, rr.CacheHits)
	}
	jr.printTargets(w)
	for j, pr := range jr.Probes {
		if pr.Location.Owner < 0 {
			fmt.Fprintf(w, "Probe[%d] %v not found\n", j, pr.Coord)
			continue
		}
		fmt.Fprintf(w, "Probe[%d] %v owner %d element %d:", j, pr.Coord, pr.Location.Owner,
			pr.Location.Element.Global)
		for v, name := range jr.Variables {
			fmt.Fprintf(w, " %s=%8.5f", name, pr.Values[v])
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, jr.Memory)
	if jr.Instructions > 0 {
		fmt.Fprintf(w, "%d CPU instructions\n", jr.Instructions)
	}
}

// maxListed bounds the unresolved targets printed per job
const maxListed = 10

// printTargets locates the worst and the unresolved targets by owning rank
// and local index
func (jr *JobResult) printTargets(w io.Writer) {
	if jr.targets == nil {
		return
	}
	for _, rr := range jr.Ranks {
		if rr.WorstTarget < 0 {
			continue
		}
		k, kMax, bn := jr.targets.GetLocalK(rr.WorstTarget)
		fmt.Fprintf(w, "Rank %d max error at target %d (local %d of %d)\n",
			bn, rr.WorstTarget, k, kMax)
	}
	listed := 0
	for _, rr := range jr.Ranks {
		for _, kg := range rr.UnresolvedTargets {
			if listed == maxListed {
				fmt.Fprintln(w, "...")
				return
			}
			bn, kMin, _ := jr.targets.GetBucket(kg)
			fmt.Fprintf(w, "Target %d not resolved (rank %d, local %d)\n", kg, bn, kg-kMin)
			listed++
		}
	}
}
