package charts

// Qualitative color sequences used by the dashboard charts
var (
	Set1 = []string{
		"rgb(228,26,28)", "rgb(55,126,184)", "rgb(77,175,74)",
		"rgb(152,78,163)", "rgb(255,127,0)", "rgb(255,255,51)",
		"rgb(166,86,40)", "rgb(247,129,191)", "rgb(153,153,153)",
	}

	Set2 = []string{
		"rgb(102,194,165)", "rgb(252,141,98)", "rgb(141,160,203)",
		"rgb(231,138,195)", "rgb(166,216,84)", "rgb(255,217,47)",
		"rgb(229,196,148)", "rgb(179,179,179)",
	}

	Set3 = []string{
		"rgb(141,211,199)", "rgb(255,255,179)", "rgb(190,186,218)",
		"rgb(251,128,114)", "rgb(128,177,211)", "rgb(253,180,98)",
		"rgb(179,222,105)", "rgb(252,205,229)", "rgb(217,217,217)",
		"rgb(188,128,189)", "rgb(204,235,197)", "rgb(255,237,111)",
	}

	Pastel = []string{
		"rgb(102,197,204)", "rgb(246,207,113)", "rgb(248,156,116)",
		"rgb(220,176,242)", "rgb(135,197,95)", "rgb(158,185,243)",
		"rgb(254,136,177)", "rgb(201,219,116)", "rgb(139,224,164)",
		"rgb(180,151,231)", "rgb(179,179,179)",
	}

	Set1R = reversed(Set1)
)

func reversed(colors []string) []string {
	out := make([]string, len(colors))
	for i, c := range colors {
		out[len(colors)-1-i] = c
	}
	return out
}

// cycle returns n colors, repeating the palette when n exceeds it
func cycle(palette []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = palette[i%len(palette)]
	}
	return out
}
