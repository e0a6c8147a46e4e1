package assembler

import (
	"fmt"
	"strconv"
	"strings"
)

type renderOptions struct {
	Width, Height int
	FPS           int
	CRF           int
	KenBurns      bool
	Transition    string
	TransitionDur float64
	SubtitlePath  string
	SubtitleFont  string
	SubtitleSize  int
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// clipArgs renders one still image over its narration.
func clipArgs(image, audio string, duration float64, o renderOptions, out string) []string {
	var vf string
	if o.KenBurns {
		frames := int(duration*float64(o.FPS)) + 1
		vf = fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,"+
				"zoompan=z='min(zoom+0.0015,1.2)':d=%d:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':s=%dx%d:fps=%d,setsar=1",
			o.Width*2, o.Height*2, o.Width*2, o.Height*2, frames, o.Width, o.Height, o.FPS)
	} else {
		vf = fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,fps=%d,setsar=1",
			o.Width, o.Height, o.Width, o.Height, o.FPS)
	}
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if !o.KenBurns {
		args = append(args, "-loop", "1")
	}
	args = append(args,
		"-i", image,
		"-i", audio,
		"-vf", vf,
		"-af", "apad",
		"-t", seconds(duration),
		"-r", strconv.Itoa(o.FPS),
		"-pix_fmt", "yuv420p",
	)
	args = append(args, encodeArgs(o.CRF)...)
	return append(args, out)
}

// joinArgs chains clips with xfade/acrossfade, or concat when transitions
// are off, and optionally burns subtitles into the result.
func joinArgs(clips []string, durations []float64, o renderOptions, out string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, clip := range clips {
		args = append(args, "-i", clip)
	}

	var graph []string
	video, audio := "", ""
	if len(clips) > 1 && o.TransitionDur > 0 && o.Transition != "none" {
		offsets := XfadeOffsets(durations, o.TransitionDur)
		video, audio = "[0:v]", "[0:a]"
		for i := 1; i < len(clips); i++ {
			v, a := fmt.Sprintf("[v%d]", i), fmt.Sprintf("[a%d]", i)
			graph = append(graph,
				fmt.Sprintf("%s[%d:v]xfade=transition=%s:duration=%s:offset=%s%s", video, i, o.Transition, seconds(o.TransitionDur), seconds(offsets[i-1]), v),
				fmt.Sprintf("%s[%d:a]acrossfade=d=%s%s", audio, i, seconds(o.TransitionDur), a),
			)
			video, audio = v, a
		}
	} else {
		var inputs strings.Builder
		for i := range clips {
			fmt.Fprintf(&inputs, "[%d:v][%d:a]", i, i)
		}
		graph = append(graph, fmt.Sprintf("%sconcat=n=%d:v=1:a=1[vc][ac]", inputs.String(), len(clips)))
		video, audio = "[vc]", "[ac]"
	}
	if o.SubtitlePath != "" {
		graph = append(graph, fmt.Sprintf("%s%s[vs]", video, subtitleFilter(o.SubtitlePath, o.SubtitleFont, o.SubtitleSize)))
		video = "[vs]"
	}

	args = append(args,
		"-filter_complex", strings.Join(graph, ";"),
		"-map", video,
		"-map", audio,
		"-pix_fmt", "yuv420p",
	)
	args = append(args, encodeArgs(o.CRF)...)
	return append(args, "-movflags", "+faststart", "-f", "mp4", out)
}

func encodeArgs(crf int) []string {
	return []string{
		"-c:v", "libx264", "-preset", "medium", "-crf", strconv.Itoa(crf),
		"-c:a", "aac", "-b:a", "192k", "-ar", "48000", "-ac", "2",
	}
}

func subtitleFilter(path, font string, size int) string {
	style := fmt.Sprintf("FontName=%s,FontSize=%d,Outline=1,MarginV=40", font, size)
	return fmt.Sprintf("subtitles=filename=%s:force_style='%s'", escapeFilterValue(path), style)
}

// escapeFilterValue escapes characters that delimit filtergraph options.
func escapeFilterValue(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '\\', ':', '\'', ',', '[', ']', ';', '=':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
