package codec

import "errors"

var errShortSPS = errors.New("codec: SPS too short")

// avcSPS is what the access unit decoder needs from an H.264 SPS: the
// cropped picture size, and the VUI fields that size a pic_timing SEI.
type avcSPS struct {
	width, height int
	profile       byte
	level         byte

	picStruct     bool // pic_struct_present_flag
	hrd           bool // NAL or VCL HRD parameters present
	cpbDelayLen   int
	dpbDelayLen   int
	timeOffsetLen int
}

// highProfile reports whether profile_idc carries chroma format and
// scaling matrix fields.
func highProfile(p byte) bool {
	switch p {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134:
		return true
	}
	return false
}

// parseAVCSPS parses an H.264 SPS NAL unit, header byte included. A
// truncated VUI leaves the picture size intact and the timing fields zero.
func parseAVCSPS(nal []byte) (avcSPS, error) {
	if len(nal) < 4 {
		return avcSPS{}, errShortSPS
	}
	r := &bitReader{buf: unescape(nal[1:])}

	var s avcSPS
	s.profile = byte(r.u(8))
	r.skip(8) // constraint_set flags
	s.level = byte(r.u(8))
	r.ue() // seq_parameter_set_id

	chromaArrayType := uint(1)
	if highProfile(s.profile) {
		format := r.ue()
		chromaArrayType = format
		if format == 3 && r.flag() { // separate_colour_plane_flag
			chromaArrayType = 0
		}
		r.ue()    // bit_depth_luma_minus8
		r.ue()    // bit_depth_chroma_minus8
		r.skip(1) // qpprime_y_zero_transform_bypass_flag
		if r.flag() {
			lists := 8
			if format == 3 {
				lists = 12
			}
			for i := range lists {
				if !r.flag() {
					continue
				}
				if i < 6 {
					r.skipScalingList(16)
				} else {
					r.skipScalingList(64)
				}
			}
		}
	}

	r.ue() // log2_max_frame_num_minus4
	switch r.ue() {
	case 0:
		r.ue() // log2_max_pic_order_cnt_lsb_minus4
	case 1:
		r.skip(1)
		r.se()
		r.se()
		for n := r.ue(); n > 0 && r.err == nil; n-- {
			r.se()
		}
	}
	r.ue()    // max_num_ref_frames
	r.skip(1) // gaps_in_frame_num_value_allowed_flag

	mbWidth := r.ue() + 1
	mapHeight := r.ue() + 1
	fields := uint(2)
	if r.flag() { // frame_mbs_only_flag
		fields = 1
	} else {
		r.skip(1) // mb_adaptive_frame_field_flag
	}
	r.skip(1) // direct_8x8_inference_flag

	var left, right, top, bottom uint
	if r.flag() {
		left, right, top, bottom = r.ue(), r.ue(), r.ue(), r.ue()
	}
	if r.err != nil {
		return avcSPS{}, r.err
	}

	subW, subH := uint(2), uint(2)
	switch chromaArrayType {
	case 0, 3:
		subW, subH = 1, 1
	case 2:
		subH = 1
	}
	s.width = int(mbWidth*16 - subW*(left+right))
	s.height = int(mapHeight*16*fields - subH*fields*(top+bottom))

	if r.flag() {
		vui := s
		r.vui(&vui)
		if r.err == nil {
			s = vui
		}
	}
	return s, nil
}

// skipScalingList steps over one scaling_list() of size coefficients.
func (r *bitReader) skipScalingList(size int) {
	last, next := 8, 8
	for range size {
		if next != 0 {
			next = (last + r.se() + 256) % 256
		}
		if next != 0 {
			last = next
		}
		if r.err != nil {
			return
		}
	}
}

// vui reads vui_parameters() up to pic_struct_present_flag.
func (r *bitReader) vui(s *avcSPS) {
	if r.flag() { // aspect_ratio_info_present_flag
		if r.u(8) == 255 { // Extended_SAR
			r.skip(32)
		}
	}
	if r.flag() { // overscan_info_present_flag
		r.skip(1)
	}
	if r.flag() { // video_signal_type_present_flag
		r.skip(4)
		if r.flag() {
			r.skip(24)
		}
	}
	if r.flag() { // chroma_loc_info_present_flag
		r.ue()
		r.ue()
	}
	if r.flag() { // timing_info_present_flag
		r.skip(32 + 32 + 1)
	}
	nalHRD := r.flag()
	if nalHRD {
		r.hrd(s)
	}
	vclHRD := r.flag()
	if vclHRD {
		r.hrd(s)
	}
	if nalHRD || vclHRD {
		r.skip(1) // low_delay_hrd_flag
	}
	s.picStruct = r.flag()
}

// hrd reads hrd_parameters(). When both NAL and VCL parameters are
// present the first set's delay lengths are kept; they must match.
func (r *bitReader) hrd(s *avcSPS) {
	n := r.ue() // cpb_cnt_minus1
	if n > 31 {
		r.err = errTruncated
		return
	}
	r.skip(4 + 4) // bit_rate_scale, cpb_size_scale
	for range n + 1 {
		r.ue()
		r.ue()
		r.skip(1)
	}
	r.skip(5) // initial_cpb_removal_delay_length_minus1
	cpb, dpb, offset := int(r.u(5))+1, int(r.u(5))+1, int(r.u(5))
	if !s.hrd {
		s.hrd = true
		s.cpbDelayLen, s.dpbDelayLen, s.timeOffsetLen = cpb, dpb, offset
	}
}

// hevcSPS is the part of an HEVC SPS the decoder uses.
type hevcSPS struct {
	width, height int
	profile       byte
	tier          byte
	level         byte
}

// parseHEVCSPS parses an HEVC SPS NAL unit, two-byte header included. A
// truncated conformance window leaves the coded size.
func parseHEVCSPS(nal []byte) (hevcSPS, error) {
	if len(nal) < 4 {
		return hevcSPS{}, errShortSPS
	}
	r := &bitReader{buf: unescape(nal[2:])}

	r.skip(4) // sps_video_parameter_set_id
	subLayers := int(r.u(3))
	r.skip(1) // sps_temporal_id_nesting_flag

	var s hevcSPS
	r.skip(2) // general_profile_space
	s.tier = byte(r.u(1))
	s.profile = byte(r.u(5))
	r.skip(32 + 48) // compatibility and constraint flags
	s.level = byte(r.u(8))
	if subLayers > 0 {
		var profile, level [8]bool
		for i := range subLayers {
			profile[i], level[i] = r.flag(), r.flag()
		}
		r.skip(2 * (8 - subLayers))
		for i := range subLayers {
			if profile[i] {
				r.skip(88)
			}
			if level[i] {
				r.skip(8)
			}
		}
	}

	r.ue() // sps_seq_parameter_set_id
	chroma := r.ue()
	if chroma == 3 {
		r.skip(1) // separate_colour_plane_flag
	}
	s.width, s.height = int(r.ue()), int(r.ue())
	if r.err != nil {
		return hevcSPS{}, r.err
	}

	if r.flag() { // conformance_window_flag
		left, right, top, bottom := r.ue(), r.ue(), r.ue(), r.ue()
		if r.err == nil {
			subW, subH := 1, 1
			switch chroma {
			case 1:
				subW, subH = 2, 2
			case 2:
				subW = 2
			}
			s.width -= subW * int(left+right)
			s.height -= subH * int(top+bottom)
		}
	}
	return s, nil
}
