package soft

// DrawStat is one draw as executed. Indirect draws produce one entry per
// command read from the argument buffer, with the counts the GPU would use.
type DrawStat struct {
	Pipeline  string
	Pass      string
	Subpass   int
	Indexed   bool
	Indirect  bool
	Count     int
	Instances int
}

// Stats summarizes one submit.
type Stats struct {
	Draws      []DrawStat
	Dispatches int
	Barriers   int
	Passes     []string
}

// Instances returns the total instance count drawn with pipeline.
func (s Stats) Instances(pipeline string) int {
	n := 0
	for _, d := range s.Draws {
		if d.Pipeline == pipeline {
			n += d.Instances
		}
	}
	return n
}

// DrawsIn returns the draws recorded inside pass.
func (s Stats) DrawsIn(pass string) []DrawStat {
	var out []DrawStat
	for _, d := range s.Draws {
		if d.Pass == pass {
			out = append(out, d)
		}
	}
	return out
}
